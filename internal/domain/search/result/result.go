// Package result holds normalized search hits and facet counts.
package result

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

// Record is a single search hit.
type Record struct {
	typeLabel   string
	typeName    string
	pk          string
	score       float64
	fields      map[string]any
	highlighted map[string][]string
}

// New creates a Record. The maps are copied.
func New(
	typeLabel, typeName, pk string, score float64,
	fields map[string]any, highlighted map[string][]string,
) Record {
	return Record{
		typeLabel: typeLabel, typeName: typeName, pk: pk, score: score,
		fields: maps.Clone(fields), highlighted: cloneHighlights(highlighted),
	}
}

// TypeLabel returns the application label of the hit's object type.
func (r Record) TypeLabel() string { return r.typeLabel }

// TypeName returns the model name of the hit's object type.
func (r Record) TypeName() string { return r.typeName }

// Type returns the hit's object type.
func (r Record) Type() model.Type { return model.NewType(r.typeLabel, r.typeName) }

// PK returns the primary key of the source object.
func (r Record) PK() string { return r.pk }

// Identifier returns the document identifier "app.name.pk".
func (r Record) Identifier() string { return model.IdentifierFor(r.Type(), r.pk) }

// Score returns the engine-reported relevance.
func (r Record) Score() float64 { return r.score }

// Fields returns a copy of the stored field values.
func (r Record) Fields() map[string]any { return maps.Clone(r.fields) }

// Field returns one stored field value.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Highlighted returns a copy of the highlighted fragments keyed by field.
func (r Record) Highlighted() map[string][]string { return cloneHighlights(r.highlighted) }

func cloneHighlights(h map[string][]string) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = slices.Clone(v)
	}
	return out
}

// Facets holds normalized facet counts.
type Facets struct {
	Fields  map[string]map[string]int `json:"fields"`
	Dates   map[string]map[string]int `json:"dates"`
	Queries map[string]int            `json:"queries"`
}

// NewFacets returns Facets with every map initialized.
func NewFacets() Facets {
	return Facets{
		Fields:  map[string]map[string]int{},
		Dates:   map[string]map[string]int{},
		Queries: map[string]int{},
	}
}

// IsEmpty reports whether no facet counts are present.
func (f Facets) IsEmpty() bool {
	return len(f.Fields) == 0 && len(f.Dates) == 0 && len(f.Queries) == 0
}

// Response is the materialized answer of one search call.
type Response struct {
	Records []Record
	Hits    int
	Facets  Facets
}

// Empty returns a response with no hits.
func Empty() *Response {
	return &Response{Records: []Record{}, Facets: NewFacets()}
}

// PairCounts turns a flat alternating [term, count, term, count, ...] list
// into a map. A trailing unpaired term is ignored.
func PairCounts(flat []any) (map[string]int, error) {
	out := make(map[string]int, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		n, err := toCount(flat[i+1])
		if err != nil {
			return nil, fmt.Errorf("facet %v: %w", flat[i], err)
		}
		out[fmt.Sprint(flat[i])] = n
	}
	return out, nil
}

func toCount(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
