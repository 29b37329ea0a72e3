// Package schema builds the unified, engine-neutral field schema from every
// registered object type.
package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

// Bookkeeping document fields written by every backend.
const (
	FieldID          = "id"
	FieldContentType = "content_type"
	FieldObjectID    = "object_id"
	FieldScore       = "score"
)

// Reserved lists the bookkeeping names user fields may not use.
var Reserved = []string{FieldID, FieldContentType, FieldObjectID, FieldScore}

// Definition is one field of the unified schema.
type Definition struct {
	Name        string
	Type        field.Type
	Indexed     bool
	Stored      bool
	MultiValued bool
}

// Schema is the union of all registered types' fields.
type Schema struct {
	ContentField string
	Fields       []Definition

	byName map[string]int
}

// Source provides the declared fields of one object type.
type Source interface {
	ObjectType() model.Type
	Fields() map[string]*field.Field
}

// Build merges the fields of every source. Fields are ordered by first
// appearance, and by name within a source.
func Build(sources []Source) (*Schema, error) {
	s := &Schema{byName: make(map[string]int)}

	for _, src := range sources {
		fields := src.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := s.add(src.ObjectType(), name, fields[name]); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Schema) add(t model.Type, name string, f *field.Field) error {
	if slices.Contains(Reserved, name) {
		return fmt.Errorf("%w: %s declares reserved field name %q", domain.ErrConfiguration, t, name)
	}
	if !f.FieldType().Valid() {
		return fmt.Errorf("%w: %s field %q has unknown type %q",
			domain.ErrConfiguration, t, name, f.FieldType())
	}

	if f.IsDocument() {
		if s.ContentField != "" && s.ContentField != name {
			return fmt.Errorf("%w: %s uses content field %q, other types use %q",
				domain.ErrConfiguration, t, name, s.ContentField)
		}
		s.ContentField = name
	}

	if i, ok := s.byName[name]; ok {
		existing := &s.Fields[i]
		if existing.Type != f.FieldType() {
			return fmt.Errorf("%w: field %q is %s in one type and %s in %s",
				domain.ErrConfiguration, name, existing.Type, f.FieldType(), t)
		}
		existing.Indexed = existing.Indexed || f.IsIndexed()
		existing.Stored = existing.Stored || f.IsStored()
		return nil
	}

	s.byName[name] = len(s.Fields)
	s.Fields = append(s.Fields, Definition{
		Name:        name,
		Type:        f.FieldType(),
		Indexed:     f.IsIndexed(),
		Stored:      f.IsStored(),
		MultiValued: f.IsMultiValued(),
	})
	return nil
}

// Field returns the definition for name.
func (s *Schema) Field(name string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	i, ok := s.byName[name]
	if !ok {
		return Definition{}, false
	}
	return s.Fields[i], true
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, d := range s.Fields {
		out[i] = d.Name
	}
	return out
}

// IsNumeric reports whether values of t are numbers.
func IsNumeric(t field.Type) bool { return t == field.Integer || t == field.Float }

// IsTemporal reports whether values of t are dates.
func IsTemporal(t field.Type) bool { return t == field.Date || t == field.DateTime }
