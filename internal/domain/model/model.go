// Package model describes the indexable object types the search layer works with.
package model

import (
	"fmt"
	"strings"
)

// Type identifies an indexable object type by application label and model name.
type Type struct {
	AppLabel          string
	Name              string
	VerboseNamePlural string
}

// NewType creates a Type. The verbose plural defaults to name + "s".
func NewType(appLabel, name string) Type {
	return Type{AppLabel: appLabel, Name: name, VerboseNamePlural: name + "s"}
}

// ParseType parses an "app.name" content type label.
func ParseType(label string) (Type, error) {
	app, name, ok := strings.Cut(label, ".")
	if !ok || app == "" || name == "" || strings.Contains(name, ".") {
		return Type{}, fmt.Errorf("invalid content type %q (want app.name)", label)
	}
	return NewType(app, name), nil
}

// String returns the "app.name" content type label.
func (t Type) String() string { return t.AppLabel + "." + t.Name }

// Same reports whether t and o name the same object type.
func (t Type) Same(o Type) bool { return t.AppLabel == o.AppLabel && t.Name == o.Name }

// Object is anything that can be indexed.
type Object interface {
	ObjectType() Type
	ObjectKey() string
}

// AttrGetter lets an object expose attributes without reflection.
type AttrGetter interface {
	Attr(name string) (any, bool)
}

// Identifier returns the stable document identifier "app.name.pk".
func Identifier(obj Object) string {
	return IdentifierFor(obj.ObjectType(), obj.ObjectKey())
}

// IdentifierFor builds the document identifier for a type and primary key.
func IdentifierFor(t Type, pk string) string {
	return t.String() + "." + pk
}

// Instance is a map-backed Object.
type Instance struct {
	Kind  Type
	Key   string
	Attrs map[string]any
}

// NewInstance creates an Instance. attrs may be nil.
func NewInstance(t Type, pk string, attrs map[string]any) *Instance {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Instance{Kind: t, Key: pk, Attrs: attrs}
}

// ObjectType implements Object.
func (i *Instance) ObjectType() Type { return i.Kind }

// ObjectKey implements Object.
func (i *Instance) ObjectKey() string { return i.Key }

// Attr implements AttrGetter.
func (i *Instance) Attr(name string) (any, bool) {
	v, ok := i.Attrs[name]
	return v, ok
}
