// Package field declares how an object's attributes map into flat,
// engine-indexable values.
package field

import (
	"fmt"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

// Type is the semantic type of a search field.
type Type string

// Field type constants.
const (
	Text       Type = "text"
	Integer    Type = "integer"
	Float      Type = "float"
	Boolean    Type = "boolean"
	Date       Type = "date"
	DateTime   Type = "datetime"
	MultiValue Type = "multi_value"
)

// Types lists every supported semantic type.
var Types = []Type{Text, Integer, Float, Boolean, Date, DateTime, MultiValue}

// Valid reports whether t is a known semantic type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Renderer renders a named template with the given data.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Field is a search field descriptor. It is immutable once declared, apart
// from the one-time instance name binding done at index registration.
type Field struct {
	fieldType    Type
	attr         string
	useTemplate  bool
	templateName string
	document     bool
	indexed      bool
	stored       bool
	defaultValue any
	hasDefault   bool
	instanceName string
}

// Option configures a Field.
type Option func(*Field)

// Attr sets the source attribute read from the object.
func Attr(name string) Option {
	return func(f *Field) { f.attr = name }
}

// UseTemplate flattens the object through indexes/{app}/{name}_{field}.txt.
func UseTemplate() Option {
	return func(f *Field) { f.useTemplate = true }
}

// Template flattens the object through an explicit template path.
func Template(name string) Option {
	return func(f *Field) {
		f.useTemplate = true
		f.templateName = name
	}
}

// Document marks the field as the primary full-text content field.
func Document() Option {
	return func(f *Field) { f.document = true }
}

// Indexed sets whether the engine indexes the field (default true).
func Indexed(v bool) Option {
	return func(f *Field) { f.indexed = v }
}

// Stored sets whether the engine stores the field value (default true).
func Stored(v bool) Option {
	return func(f *Field) { f.stored = v }
}

// Default overrides the type default returned when no value can be resolved.
func Default(v any) Option {
	return func(f *Field) {
		f.defaultValue = v
		f.hasDefault = true
	}
}

// New declares a field of the given semantic type.
func New(t Type, opts ...Option) *Field {
	f := &Field{fieldType: t, indexed: true, stored: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Bind records the name the field was declared under. Binding happens once;
// rebinding to the same name is a no-op.
func (f *Field) Bind(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", domain.ErrConfiguration)
	}
	if f.instanceName != "" && f.instanceName != name {
		return fmt.Errorf("%w: field already bound as %q, cannot rebind as %q",
			domain.ErrConfiguration, f.instanceName, name)
	}
	f.instanceName = name
	return nil
}

// InstanceName returns the bound field name ("" before registration).
func (f *Field) InstanceName() string { return f.instanceName }

// FieldType returns the semantic type.
func (f *Field) FieldType() Type { return f.fieldType }

// AttrName returns the configured source attribute.
func (f *Field) AttrName() string { return f.attr }

// IsDocument reports whether this is the primary content field.
func (f *Field) IsDocument() bool { return f.document }

// IsIndexed reports whether the field is indexed.
func (f *Field) IsIndexed() bool { return f.indexed }

// IsStored reports whether the field is stored.
func (f *Field) IsStored() bool { return f.stored }

// IsMultiValued reports whether the field holds a list of values.
func (f *Field) IsMultiValued() bool { return f.fieldType == MultiValue }

// UsesTemplate reports whether values are rendered from a template.
func (f *Field) UsesTemplate() bool { return f.useTemplate }

// DefaultValue returns the explicit default or the type default.
func (f *Field) DefaultValue() any {
	if f.hasDefault {
		return f.defaultValue
	}
	return DefaultFor(f.fieldType)
}

// Prepare resolves and coerces the field value for obj. Template fields take
// priority, then the source attribute, then the default.
func (f *Field) Prepare(obj model.Object, r Renderer) (any, error) {
	raw, err := f.resolve(obj, r)
	if err != nil {
		return nil, err
	}
	v, err := Coerce(f.fieldType, raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.instanceName, err)
	}
	return v, nil
}

func (f *Field) resolve(obj model.Object, r Renderer) (any, error) {
	if f.useTemplate {
		return f.prepareTemplate(obj, r)
	}
	if f.attr != "" {
		v, ok, err := lookupAttr(obj, f.attr)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.instanceName, err)
		}
		if ok {
			return v, nil
		}
	}
	return f.DefaultValue(), nil
}

// TemplatePath returns the template used to flatten obj.
func (f *Field) TemplatePath(t model.Type) (string, error) {
	if f.templateName != "" {
		return f.templateName, nil
	}
	if f.instanceName == "" {
		return "", fmt.Errorf(
			"%w: field requires either a bound instance name or an explicit template name",
			domain.ErrConfiguration)
	}
	return fmt.Sprintf("indexes/%s/%s_%s.txt", t.AppLabel, t.Name, f.instanceName), nil
}

func (f *Field) prepareTemplate(obj model.Object, r Renderer) (string, error) {
	name, err := f.TemplatePath(obj.ObjectType())
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("%w: field %q uses a template but no renderer is configured",
			domain.ErrConfiguration, f.instanceName)
	}
	out, err := r.Render(name, map[string]any{"object": obj})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}
