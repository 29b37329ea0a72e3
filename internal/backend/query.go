package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
)

// Query is a compiled query plus its request options.
type Query struct {
	// String is the native query produced by Compiler.Compile. Empty means
	// "no query" and yields an empty response without contacting the engine.
	String string
	// Sort lists field names; a "-" prefix sorts descending.
	Sort   []string
	Offset int
	// Limit caps the number of returned records; 0 lets the engine decide.
	Limit       int
	Fields      []string
	Highlight   bool
	Facets      []string
	DateFacets  map[string]DateFacet
	QueryFacets []QueryFacet
	// Narrow restricts matches without affecting relevance.
	Narrow []filter.Expression
}

// QueryFacet counts the hits matching Field exactly equal to Value.
type QueryFacet struct {
	Field string
	Value any
}

// Key returns the label the facet count is reported under.
func (f QueryFacet) Key() string {
	if t, ok := f.Value.(time.Time); ok {
		return f.Field + ":" + FormatDate(t)
	}
	return fmt.Sprintf("%s:%v", f.Field, f.Value)
}

// Atom returns the facet as an exact-match filter atom.
func (f QueryFacet) Atom() filter.Atom {
	return filter.Atom{Field: f.Field, Op: filter.Exact, Value: f.Value}
}

// SortField is one parsed sort key.
type SortField struct {
	Name string
	Desc bool
}

// String renders the field back to its "-name" form.
func (s SortField) String() string {
	if s.Desc {
		return "-" + s.Name
	}
	return s.Name
}

// SortFields parses q.Sort.
func (q *Query) SortFields() []SortField {
	out := make([]SortField, 0, len(q.Sort))
	for _, s := range q.Sort {
		name, desc := strings.CutPrefix(s, "-")
		out = append(out, SortField{Name: name, Desc: desc})
	}
	return out
}

// Validate checks engine-independent constraints.
func (q *Query) Validate() error {
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", domain.ErrCompilation, q.Offset)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", domain.ErrCompilation, q.Limit)
	}
	for _, s := range q.Sort {
		if strings.TrimPrefix(s, "-") == "" {
			return fmt.Errorf("%w: empty sort field", domain.ErrCompilation)
		}
	}
	for _, qf := range q.QueryFacets {
		if qf.Field == "" {
			return fmt.Errorf("%w: query facet needs a field", domain.ErrCompilation)
		}
	}
	for name, df := range q.DateFacets {
		if err := df.Validate(); err != nil {
			return fmt.Errorf("date facet %q: %w", name, err)
		}
	}
	return nil
}

// Window returns the [start, start+rows) slice of hits requested, applying
// defaultRows when Limit is 0.
func (q *Query) Window(defaultRows int) (start, rows int) {
	rows = q.Limit
	if rows == 0 {
		rows = defaultRows
	}
	return q.Offset, rows
}
