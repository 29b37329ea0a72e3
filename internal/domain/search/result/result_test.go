package result

import (
	"testing"
)

func TestRecord(t *testing.T) {
	fields := map[string]any{"title": "Hello"}
	hl := map[string][]string{"text": {"<em>Hello</em> world"}}
	r := New("core", "note", "7", 1.5, fields, hl)

	if r.TypeLabel() != "core" || r.TypeName() != "note" || r.PK() != "7" || r.Score() != 1.5 {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Identifier() != "core.note.7" {
		t.Errorf("Identifier() = %q", r.Identifier())
	}
	if r.Type().String() != "core.note" {
		t.Errorf("Type() = %v", r.Type())
	}
	if v, ok := r.Field("title"); !ok || v != "Hello" {
		t.Errorf("Field(title) = %v, %v", v, ok)
	}

	fields["title"] = "changed"
	hl["text"][0] = "changed"
	if v, _ := r.Field("title"); v != "Hello" {
		t.Error("New must copy fields")
	}
	if r.Highlighted()["text"][0] != "<em>Hello</em> world" {
		t.Error("New must copy highlights")
	}

	got := r.Fields()
	got["title"] = "mutated"
	if v, _ := r.Field("title"); v != "Hello" {
		t.Error("Fields() must return a copy")
	}
	h := r.Highlighted()
	h["text"][0] = "mutated"
	if r.Highlighted()["text"][0] != "<em>Hello</em> world" {
		t.Error("Highlighted() must return a deep copy")
	}
}

func TestRecord_NoHighlights(t *testing.T) {
	r := New("core", "note", "1", 0, nil, nil)
	if r.Highlighted() != nil {
		t.Error("expected nil highlights")
	}
	if len(r.Fields()) != 0 {
		t.Error("expected no fields")
	}
}

func TestPairCounts(t *testing.T) {
	tests := []struct {
		name string
		flat []any
		want map[string]int
	}{
		{"empty", nil, map[string]int{}},
		{"ints", []any{"go", 3, "rust", 1}, map[string]int{"go": 3, "rust": 1}},
		{"json numbers", []any{"a", 2.0, "b", float64(0)}, map[string]int{"a": 2, "b": 0}},
		{"strings", []any{"x", "12"}, map[string]int{"x": 12}},
		{"numeric terms", []any{2009, int64(4)}, map[string]int{"2009": 4}},
		{"odd length", []any{"a", 1, "dangling"}, map[string]int{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PairCounts(tt.flat)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("PairCounts() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %d, want %d", k, got[k], v)
				}
			}
		})
	}

	if _, err := PairCounts([]any{"a", []int{1}}); err == nil {
		t.Error("expected error for non-numeric count")
	}
	if _, err := PairCounts([]any{"a", "many"}); err == nil {
		t.Error("expected error for unparsable count")
	}
}

func TestFacets(t *testing.T) {
	f := NewFacets()
	if !f.IsEmpty() {
		t.Error("NewFacets should be empty")
	}
	f.Queries["rating:[3 TO *]"] = 4
	if f.IsEmpty() {
		t.Error("facets with a query count are not empty")
	}

	resp := Empty()
	if resp.Hits != 0 || len(resp.Records) != 0 || !resp.Facets.IsEmpty() {
		t.Errorf("Empty() = %+v", resp)
	}
}
