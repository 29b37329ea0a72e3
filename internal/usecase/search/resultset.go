package search

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// DefaultPageSize is the number of records fetched per engine request.
const DefaultPageSize = 20

// ErrOutOfRange is returned for a record position outside the result set.
var ErrOutOfRange = errors.New("result position out of range")

// ResultSet is a lazy, paged view over the hits of one query. Nothing is
// fetched until the first read; each page is fetched at most once. Facets
// are requested with the first page only. A ResultSet is not safe for
// concurrent use.
type ResultSet struct {
	engine   Engine
	query    *backend.Query
	pageSize int

	pages  map[int][]result.Record
	total  *int
	facets result.Facets
}

func newResultSet(e Engine, q *backend.Query, pageSize int) *ResultSet {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ResultSet{
		engine:   e,
		query:    q,
		pageSize: pageSize,
		pages:    make(map[int][]result.Record),
		facets:   result.NewFacets(),
	}
}

// Len returns the number of hits inside the query window.
func (rs *ResultSet) Len(ctx context.Context) (int, error) {
	if rs.total == nil {
		if _, err := rs.page(ctx, 0); err != nil {
			return 0, err
		}
	}
	return rs.window(*rs.total), nil
}

// window clamps the engine total to the query's offset and limit.
func (rs *ResultSet) window(total int) int {
	n := max(total-rs.query.Offset, 0)
	if rs.query.Limit > 0 {
		n = min(n, rs.query.Limit)
	}
	return n
}

// At returns the record at position i.
func (rs *ResultSet) At(ctx context.Context, i int) (result.Record, error) {
	n, err := rs.Len(ctx)
	if err != nil {
		return result.Record{}, err
	}
	if i < 0 || i >= n {
		return result.Record{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, n)
	}
	records, err := rs.page(ctx, i/rs.pageSize)
	if err != nil {
		return result.Record{}, err
	}
	j := i % rs.pageSize
	if j >= len(records) {
		return result.Record{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, n)
	}
	return records[j], nil
}

// Slice returns the records in [lo, hi), clamped to the result set.
func (rs *ResultSet) Slice(ctx context.Context, lo, hi int) ([]result.Record, error) {
	n, err := rs.Len(ctx)
	if err != nil {
		return nil, err
	}
	lo, hi = max(lo, 0), min(hi, n)
	if lo >= hi {
		return nil, nil
	}

	out := make([]result.Record, 0, hi-lo)
	for p := lo / rs.pageSize; p*rs.pageSize < hi; p++ {
		records, err := rs.page(ctx, p)
		if err != nil {
			return nil, err
		}
		base := p * rs.pageSize
		from := max(lo-base, 0)
		to := min(hi-base, len(records))
		if from < to {
			out = append(out, records[from:to]...)
		}
	}
	return out, nil
}

// All iterates over every record, fetching pages as needed. Iteration stops
// after yielding the first error.
func (rs *ResultSet) All(ctx context.Context) iter.Seq2[result.Record, error] {
	return func(yield func(result.Record, error) bool) {
		n, err := rs.Len(ctx)
		if err != nil {
			yield(result.Record{}, err)
			return
		}
		for p := 0; p*rs.pageSize < n; p++ {
			records, err := rs.page(ctx, p)
			if err != nil {
				yield(result.Record{}, err)
				return
			}
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// Facets returns the facet counts, running the query if needed.
func (rs *ResultSet) Facets(ctx context.Context) (result.Facets, error) {
	if rs.total == nil {
		if _, err := rs.page(ctx, 0); err != nil {
			return result.Facets{}, err
		}
	}
	return rs.facets, nil
}

// page returns page p, fetching it on first use.
func (rs *ResultSet) page(ctx context.Context, p int) ([]result.Record, error) {
	if records, ok := rs.pages[p]; ok {
		return records, nil
	}
	if rs.query.String == "" {
		zero := 0
		rs.total = &zero
		rs.pages[p] = nil
		return nil, nil
	}

	q := *rs.query
	q.Offset = rs.query.Offset + p*rs.pageSize
	q.Limit = rs.pageSize
	if rs.query.Limit > 0 {
		q.Limit = min(rs.pageSize, rs.query.Limit-p*rs.pageSize)
		if q.Limit <= 0 {
			rs.pages[p] = nil
			return nil, nil
		}
	}
	first := rs.total == nil
	if !first {
		q.Facets, q.DateFacets, q.QueryFacets = nil, nil, nil
	}

	resp, err := rs.engine.Search(ctx, &q)
	if err != nil {
		return nil, err
	}
	if first {
		total := resp.Hits
		rs.total = &total
		rs.facets = resp.Facets
	}
	rs.pages[p] = resp.Records
	return resp.Records, nil
}
