package search

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
)

// clause is one filter atom; clean marks user text escaped at compile time.
type clause struct {
	atom  filter.Atom
	clean bool
}

// Query describes a search independently of any engine. Every builder
// method returns a modified copy, so a Query can be reused as a base for
// several searches. The first invalid call is reported by Compile.
type Query struct {
	clauses     []clause
	models      []model.Type
	boosts      []backend.Boost
	order       []string
	fields      []string
	highlight   bool
	facets      []string
	dateFacets  map[string]backend.DateFacet
	queryFacets []backend.QueryFacet
	narrow      []filter.Expression
	offset      int
	limit       int
	none        bool
	err         error
}

// NewQuery returns a query matching every indexed document.
func NewQuery() *Query { return &Query{} }

func (q *Query) clone() *Query {
	c := *q
	c.clauses = slices.Clone(q.clauses)
	c.models = slices.Clone(q.models)
	c.boosts = slices.Clone(q.boosts)
	c.order = slices.Clone(q.order)
	c.fields = slices.Clone(q.fields)
	c.facets = slices.Clone(q.facets)
	c.dateFacets = maps.Clone(q.dateFacets)
	c.queryFacets = slices.Clone(q.queryFacets)
	c.narrow = slices.Clone(q.narrow)
	return &c
}

func (q *Query) fail(err error) *Query {
	c := q.clone()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %w", domain.ErrCompilation, err)
	}
	return c
}

func (q *Query) add(key string, value any, conn filter.Connector) *Query {
	name, op, err := filter.ParseLookup(key)
	if err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.clauses = append(c.clauses, clause{atom: filter.Atom{Field: name, Op: op, Value: value, Connector: conn}})
	return c
}

// Filter ANDs a "field__op" lookup onto the query.
func (q *Query) Filter(key string, value any) *Query { return q.add(key, value, filter.And) }

// Exclude ANDs the negation of a "field__op" lookup onto the query.
func (q *Query) Exclude(key string, value any) *Query { return q.add(key, value, filter.Not) }

// FilterOr ORs a "field__op" lookup onto the query.
func (q *Query) FilterOr(key string, value any) *Query { return q.add(key, value, filter.Or) }

// AutoQuery filters on the content field with user-supplied text, escaped
// by the engine's compiler.
func (q *Query) AutoQuery(text string) *Query {
	c := q.clone()
	c.clauses = append(c.clauses, clause{
		atom:  filter.Atom{Field: filter.ContentField, Op: filter.Exact, Value: text, Connector: filter.And},
		clean: true,
	})
	return c
}

// Models restricts hits to the given object types.
func (q *Query) Models(types ...model.Type) *Query {
	c := q.clone()
	c.models = append(c.models, types...)
	return c
}

// OrderBy sorts by fields; a "-" prefix sorts descending.
func (q *Query) OrderBy(fields ...string) *Query {
	c := q.clone()
	c.order = append(c.order, fields...)
	return c
}

// Boost raises the relevance of documents containing term.
func (q *Query) Boost(term string, weight float64) *Query {
	if term == "" {
		return q.fail(fmt.Errorf("boost term is required"))
	}
	c := q.clone()
	c.boosts = append(c.boosts, backend.Boost{Term: term, Weight: weight})
	return c
}

// Fields limits the stored fields returned with each record.
func (q *Query) Fields(names ...string) *Query {
	c := q.clone()
	c.fields = append(c.fields, names...)
	return c
}

// Highlight requests highlighted snippets of the content field.
func (q *Query) Highlight() *Query {
	c := q.clone()
	c.highlight = true
	return c
}

// Facet requests per-value counts for field.
func (q *Query) Facet(field string) *Query {
	c := q.clone()
	c.facets = append(c.facets, field)
	return c
}

// DateFacet requests counts per gap-sized bucket of a date field.
func (q *Query) DateFacet(field string, start, end time.Time, gap string) *Query {
	df := backend.DateFacet{Start: start, End: end, Gap: gap}
	if err := df.Validate(); err != nil {
		return q.fail(fmt.Errorf("date facet %q: %w", field, err))
	}
	c := q.clone()
	if c.dateFacets == nil {
		c.dateFacets = make(map[string]backend.DateFacet)
	}
	c.dateFacets[field] = df
	return c
}

// QueryFacet requests the count of hits where field equals value.
func (q *Query) QueryFacet(field string, value any) *Query {
	c := q.clone()
	c.queryFacets = append(c.queryFacets, backend.QueryFacet{Field: field, Value: value})
	return c
}

// Narrow restricts hits with a "field__op" lookup that does not affect scoring.
func (q *Query) Narrow(key string, value any) *Query {
	name, op, err := filter.ParseLookup(key)
	if err != nil {
		return q.fail(err)
	}
	expr, err := filter.NewExpression(filter.Atom{Field: name, Op: op, Value: value})
	if err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.narrow = append(c.narrow, expr)
	return c
}

// Window bounds the result set to limit hits starting at offset. A zero
// limit leaves the set unbounded.
func (q *Query) Window(offset, limit int) *Query {
	if offset < 0 || limit < 0 {
		return q.fail(fmt.Errorf("invalid window offset=%d limit=%d", offset, limit))
	}
	c := q.clone()
	c.offset, c.limit = offset, limit
	return c
}

// None returns a query that matches nothing without contacting the engine.
func (q *Query) None() *Query {
	c := q.clone()
	c.none = true
	return c
}

// Compile lowers the query with c into a backend query.
func (q *Query) Compile(c backend.Compiler) (*backend.Query, error) {
	if q.err != nil {
		return nil, q.err
	}

	out := &backend.Query{
		Sort:        slices.Clone(q.order),
		Offset:      q.offset,
		Limit:       q.limit,
		Fields:      slices.Clone(q.fields),
		Highlight:   q.highlight,
		Facets:      slices.Clone(q.facets),
		DateFacets:  maps.Clone(q.dateFacets),
		QueryFacets: slices.Clone(q.queryFacets),
		Narrow:      slices.Clone(q.narrow),
	}
	if q.none {
		return out, nil
	}

	atoms := make([]filter.Atom, len(q.clauses))
	for i, cl := range q.clauses {
		atoms[i] = cl.atom
		if cl.clean {
			atoms[i].Value = c.Clean(fmt.Sprint(cl.atom.Value))
			atoms[i].Cleaned = true
		}
	}
	expr, err := filter.NewExpression(atoms...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCompilation, err)
	}

	s, err := c.Compile(expr, q.models, q.boosts)
	if err != nil {
		return nil, err
	}
	out.String = s
	return out, nil
}
