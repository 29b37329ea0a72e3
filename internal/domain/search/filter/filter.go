// Package filter holds the engine-neutral filter expression built by callers
// and lowered by each backend's query compiler.
package filter

import (
	"fmt"
	"reflect"
	"strings"
)

// ContentField is the reserved field name that targets the default full-text field.
const ContentField = "content"

// Separator splits a lookup key into field and operator ("pub_date__gte").
const Separator = "__"

// Op is a predicate operator.
type Op string

// Supported operators.
const (
	Exact Op = "exact"
	GT    Op = "gt"
	GTE   Op = "gte"
	LT    Op = "lt"
	LTE   Op = "lte"
	In    Op = "in"
)

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	switch op {
	case Exact, GT, GTE, LT, LTE, In:
		return true
	}
	return false
}

// IsRange reports whether op is one of the range operators.
func (op Op) IsRange() bool {
	return op == GT || op == GTE || op == LT || op == LTE
}

// Connector joins an atom to the atoms before it.
type Connector string

// Connectors. None is only meaningful on the first atom.
const (
	None Connector = ""
	And  Connector = "AND"
	Not  Connector = "NOT"
	Or   Connector = "OR"
)

// Atom is a single predicate.
type Atom struct {
	Field     string
	Op        Op
	Value     any
	Connector Connector
	// Cleaned marks a value already escaped by the engine's sanitizer.
	// Compilers emit it verbatim instead of escaping it again.
	Cleaned bool
}

// IsContent reports whether the atom targets the default full-text field.
func (a Atom) IsContent() bool { return a.Field == ContentField }

// Values returns the elements of an `in` value. ok is false when the value is
// not a slice or array.
func (a Atom) Values() (values []any, ok bool) {
	rv := reflect.ValueOf(a.Value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Expression is an immutable, ordered sequence of atoms.
type Expression struct {
	atoms []Atom
}

// NewExpression validates atoms and creates an Expression.
func NewExpression(atoms ...Atom) (Expression, error) {
	for i, a := range atoms {
		if err := validate(a); err != nil {
			return Expression{}, fmt.Errorf("atom %d: %w", i, err)
		}
	}
	return Expression{atoms: append([]Atom(nil), atoms...)}, nil
}

func validate(a Atom) error {
	if a.Field == "" {
		return fmt.Errorf("filter field is required")
	}
	if !a.Op.Valid() {
		return fmt.Errorf("unknown operator %q for field %q", a.Op, a.Field)
	}
	switch a.Connector {
	case None, And, Not, Or:
	default:
		return fmt.Errorf("unknown connector %q", a.Connector)
	}
	return nil
}

// With returns a new Expression with a appended.
func (e Expression) With(a Atom) (Expression, error) {
	if err := validate(a); err != nil {
		return Expression{}, err
	}
	atoms := make([]Atom, len(e.atoms), len(e.atoms)+1)
	copy(atoms, e.atoms)
	return Expression{atoms: append(atoms, a)}, nil
}

// Atoms returns a copy of the atoms.
func (e Expression) Atoms() []Atom { return append([]Atom(nil), e.atoms...) }

// Len returns the number of atoms.
func (e Expression) Len() int { return len(e.atoms) }

// IsEmpty reports whether the expression has no atoms.
func (e Expression) IsEmpty() bool { return len(e.atoms) == 0 }

// LeadingConnector returns the connector a compiler should emit before atom i.
// The first atom's AND/OR connector is dropped; a leading NOT is kept.
func (e Expression) LeadingConnector(i int) Connector {
	c := e.atoms[i].Connector
	if i == 0 && c != Not {
		return None
	}
	if i > 0 && c == None {
		return And
	}
	return c
}

// ParseLookup splits "field__op" into its parts. A key without a known
// operator suffix is an exact match on the whole key.
func ParseLookup(key string) (string, Op, error) {
	if key == "" {
		return "", "", fmt.Errorf("filter key is required")
	}
	i := strings.LastIndex(key, Separator)
	if i < 0 {
		return key, Exact, nil
	}
	name, op := key[:i], Op(key[i+len(Separator):])
	if !op.Valid() {
		return key, Exact, nil
	}
	if name == "" {
		return "", "", fmt.Errorf("filter key %q has no field name", key)
	}
	return name, op, nil
}
