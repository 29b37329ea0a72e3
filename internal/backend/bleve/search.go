package bleve

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Facet request names are prefixed to keep field and date facets on the
// same field apart.
const (
	fieldFacetPrefix = "field:"
	dateFacetPrefix  = "date:"
)

// Search implements backend.Backend.
func (b *Backend) Search(ctx context.Context, q *backend.Query) (*result.Response, error) {
	if q.String == "" {
		return result.Empty(), nil
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}

	base, err := b.effectiveQuery(q)
	if err != nil {
		return nil, err
	}
	bq, err := parse(base)
	if err != nil {
		return nil, err
	}

	start, rows := q.Window(DefaultRows)
	req := bleve.NewSearchRequestOptions(bq, rows, start, false)
	req.Fields = b.returnFields(q)

	sortBy, err := b.sortBy(q)
	if err != nil {
		return nil, err
	}
	if len(sortBy) > 0 {
		req.SortBy(sortBy)
	}

	if q.Highlight && b.schema.ContentField != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(b.schema.ContentField)
	}

	buckets, err := b.addFacets(req, q)
	if err != nil {
		return nil, err
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Err: err}
	}

	resp := b.materialize(res)
	resp.Facets = b.facets(res, q, buckets)
	if err := b.queryFacets(ctx, q, base, resp.Facets); err != nil {
		return nil, err
	}
	return resp, nil
}

// effectiveQuery intersects the compiled query with every narrowing expression.
func (b *Backend) effectiveQuery(q *backend.Query) (string, error) {
	if len(q.Narrow) == 0 {
		return q.String, nil
	}
	parts := make([]any, 0, len(q.Narrow)+1)
	parts = append(parts, json.RawMessage(q.String))
	for _, expr := range q.Narrow {
		n, err := compileExpr(b.schema, expr)
		if err != nil {
			return "", err
		}
		parts = append(parts, n)
	}
	return encode(dsl{"conjuncts": parts})
}

func parse(raw string) (query.Query, error) {
	q, err := query.ParseQuery([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCompilation, err)
	}
	return q, nil
}

func (b *Backend) returnFields(q *backend.Query) []string {
	if len(q.Fields) == 0 {
		return []string{"*"}
	}
	return append([]string{schema.FieldID, schema.FieldContentType, schema.FieldObjectID}, q.Fields...)
}

// sortBy maps sort keys to bleve sort strings; score becomes _score.
func (b *Backend) sortBy(q *backend.Query) ([]string, error) {
	fields := q.SortFields()
	out := make([]string, 0, len(fields))
	for _, sf := range fields {
		name := sf.Name
		if name == schema.FieldScore {
			name = "_score"
		} else if def, ok := b.schema.Field(name); !ok || !def.Indexed {
			return nil, fmt.Errorf("%w: cannot sort on undeclared field %q", domain.ErrCompilation, name)
		}
		if sf.Desc {
			name = "-" + name
		}
		out = append(out, name)
	}
	return out, nil
}

// addFacets attaches field and date facet requests and returns the date
// buckets per field for zero filling.
func (b *Backend) addFacets(req *bleve.SearchRequest, q *backend.Query) (map[string][]backend.Bucket, error) {
	for _, name := range q.Facets {
		if _, ok := b.schema.Field(name); !ok && name != schema.FieldContentType {
			return nil, fmt.Errorf("%w: facet on undeclared field %q", domain.ErrCompilation, name)
		}
		req.AddFacet(fieldFacetPrefix+name, bleve.NewFacetRequest(name, facetSize))
	}

	buckets := make(map[string][]backend.Bucket, len(q.DateFacets))
	for name, df := range q.DateFacets {
		def, ok := b.schema.Field(name)
		if !ok || !schema.IsTemporal(def.Type) || !def.Indexed {
			return nil, fmt.Errorf("%w: date facet on non-date field %q", domain.ErrCompilation, name)
		}
		bks, err := df.Buckets()
		if err != nil {
			return nil, err
		}
		fr := bleve.NewFacetRequest(name, len(bks))
		for _, bk := range bks {
			fr.AddDateTimeRange(bk.Key(), bk.Start, bk.End)
		}
		req.AddFacet(dateFacetPrefix+name, fr)
		buckets[name] = bks
	}
	return buckets, nil
}

func (b *Backend) materialize(res *bleve.SearchResult) *result.Response {
	resp := result.Empty()
	resp.Hits = int(res.Total)

	for _, hit := range res.Hits {
		doc := maps.Clone(hit.Fields)
		if doc == nil {
			doc = make(map[string]any)
		}
		normalize(b.schema, doc)

		var hl map[string][]string
		if len(hit.Fragments) > 0 {
			hl = map[string][]string(hit.Fragments)
		}

		rec, err := backend.NewRecord(doc, hit.Score, hl)
		if err != nil || !backend.Known(b.site, rec) {
			b.logger.Debug("Dropping hit of unknown type",
				zap.String("id", hit.ID),
				zap.Error(err),
			)
			continue
		}
		resp.Records = append(resp.Records, rec)
	}
	return resp
}

func (b *Backend) facets(res *bleve.SearchResult, q *backend.Query, buckets map[string][]backend.Bucket) result.Facets {
	facets := result.NewFacets()

	for _, name := range q.Facets {
		counts := make(map[string]int)
		if fr, ok := res.Facets[fieldFacetPrefix+name]; ok && fr.Terms != nil {
			for _, t := range fr.Terms.Terms() {
				counts[t.Term] = t.Count
			}
		}
		facets.Fields[name] = counts
	}

	for name, bks := range buckets {
		counts := make(map[string]int, len(bks))
		for _, bk := range bks {
			counts[bk.Key()] = 0
		}
		if fr, ok := res.Facets[dateFacetPrefix+name]; ok {
			for _, dr := range fr.DateRanges {
				counts[dr.Name] = dr.Count
			}
		}
		facets.Dates[name] = counts
	}
	return facets
}

// queryFacets counts each query facet with a size-0 search intersected
// with the base query.
func (b *Backend) queryFacets(ctx context.Context, q *backend.Query, base string, facets result.Facets) error {
	for _, qf := range q.QueryFacets {
		pred, err := predicate(b.schema, qf.Atom())
		if err != nil {
			return err
		}
		raw, err := encode(dsl{"conjuncts": []any{json.RawMessage(base), pred}})
		if err != nil {
			return err
		}
		fq, err := parse(raw)
		if err != nil {
			return err
		}
		res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(fq, 0, 0, false))
		if err != nil {
			return &backend.Error{Op: backend.OpSearch, Err: err}
		}
		facets.Queries[qf.Key()] = int(res.Total)
	}
	return nil
}
