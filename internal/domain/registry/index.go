// Package registry holds the search indexes declared for each object type.
package registry

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
)

// Index declares the search fields of one object type.
type Index struct {
	typ          model.Type
	fields       map[string]*field.Field
	contentField string
}

// NewIndex binds every field to its name and validates the declaration:
// exactly one field must be the document field.
func NewIndex(t model.Type, fields map[string]*field.Field) (*Index, error) {
	if t.AppLabel == "" || t.Name == "" {
		return nil, fmt.Errorf("%w: index type needs an app label and a name", domain.ErrConfiguration)
	}

	idx := &Index{typ: t, fields: make(map[string]*field.Field, len(fields))}
	for name, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("%w: %s field %q is nil", domain.ErrConfiguration, t, name)
		}
		if !f.FieldType().Valid() {
			return nil, fmt.Errorf("%w: %s field %q has unknown type %q",
				domain.ErrConfiguration, t, name, f.FieldType())
		}
		if err := f.Bind(name); err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if f.IsDocument() {
			if idx.contentField != "" {
				return nil, fmt.Errorf("%w: %s declares two document fields (%q, %q)",
					domain.ErrConfiguration, t, idx.contentField, name)
			}
			idx.contentField = name
		}
		idx.fields[name] = f
	}

	if idx.contentField == "" {
		return nil, fmt.Errorf("%w: %s has no document field", domain.ErrConfiguration, t)
	}
	return idx, nil
}

// ObjectType returns the indexed type.
func (i *Index) ObjectType() model.Type { return i.typ }

// Fields returns a copy of the declared fields keyed by name.
func (i *Index) Fields() map[string]*field.Field { return maps.Clone(i.fields) }

// Field returns the declared field called name.
func (i *Index) Field(name string) (*field.Field, bool) {
	f, ok := i.fields[name]
	return f, ok
}

// ContentField returns the name of the document field.
func (i *Index) ContentField() string { return i.contentField }

// Prepare flattens obj into a document: the bookkeeping fields plus every
// declared field, resolved and coerced.
func (i *Index) Prepare(obj model.Object, r field.Renderer) (map[string]any, error) {
	if !obj.ObjectType().Same(i.typ) {
		return nil, fmt.Errorf("%w: %s index cannot prepare %s object",
			domain.ErrConfiguration, i.typ, obj.ObjectType())
	}
	if obj.ObjectKey() == "" {
		return nil, fmt.Errorf("%w: %s object has an empty primary key", domain.ErrConfiguration, i.typ)
	}

	doc := make(map[string]any, len(i.fields)+3)
	doc[schema.FieldID] = model.Identifier(obj)
	doc[schema.FieldContentType] = i.typ.String()
	doc[schema.FieldObjectID] = obj.ObjectKey()

	for name, f := range i.fields {
		v, err := f.Prepare(obj, r)
		if err != nil {
			return nil, err
		}
		doc[name] = v
	}
	return doc, nil
}
