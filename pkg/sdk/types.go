package searchdex

import (
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

type (
	// Type identifies an indexable object type by app label and model name.
	Type = model.Type
	// Object is anything that can be indexed.
	Object = model.Object
	// Instance is a map-backed Object.
	Instance = model.Instance
	// Field declares how one attribute is indexed.
	Field = field.Field
	// FieldType is the semantic type of a Field.
	FieldType = field.Type
	// FieldOption configures a Field.
	FieldOption = field.Option
	// Index declares the search fields of one object type.
	Index = registry.Index
	// Choice is a selectable model for search forms.
	Choice = registry.Choice
	// Query is an immutable, engine-neutral query builder.
	Query = searchuc.Query
	// ResultSet is a lazily paged view over the hits of a query.
	ResultSet = searchuc.ResultSet
	// Record is one search hit.
	Record = result.Record
	// Facets holds facet counts.
	Facets = result.Facets
	// Response is the materialized answer of one engine call.
	Response = result.Response
	// BatchResult is the outcome of one object in an update.
	BatchResult = batch.Result
)

// Field types.
const (
	Text       = field.Text
	Integer    = field.Integer
	Float      = field.Float
	Boolean    = field.Boolean
	Date       = field.Date
	DateTime   = field.DateTime
	MultiValue = field.MultiValue
)

// NewType creates a Type.
func NewType(appLabel, name string) Type { return model.NewType(appLabel, name) }

// NewInstance creates a map-backed Object.
func NewInstance(t Type, pk string, attrs map[string]any) *Instance {
	return model.NewInstance(t, pk, attrs)
}

// NewField declares a field of the given type.
func NewField(t FieldType, opts ...FieldOption) *Field { return field.New(t, opts...) }

// Field options.
var (
	Attr        = field.Attr
	UseTemplate = field.UseTemplate
	Template    = field.Template
	Document    = field.Document
	Indexed     = field.Indexed
	Stored      = field.Stored
	Default     = field.Default
)

// NewIndex declares the search fields of t. Exactly one field must be the
// document field.
func NewIndex(t Type, fields map[string]*Field) (*Index, error) {
	return registry.NewIndex(t, fields)
}

// IndexFor builds an Index from the `search:"name,type,opts"` tags of struct T.
func IndexFor[T any](t Type) (*Index, error) { return registry.IndexFor[T](t) }

// NewQuery returns a query matching every indexed document.
func NewQuery() *Query { return searchuc.NewQuery() }
