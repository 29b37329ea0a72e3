package searchdex

import (
	"context"
	"fmt"
	"time"
)

// SearchService runs queries against the engine.
type SearchService struct {
	svc searchUseCase
	obs *observer
}

// Query starts a new query matching every indexed document.
func (s *SearchService) Query() *Query { return NewQuery() }

// Run compiles q and returns a lazy result set. No engine call is made until
// the result set is read.
func (s *SearchService) Run(q *Query) (rs *ResultSet, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search", start, err) }()

	rs, err = s.svc.Run(q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return rs, nil
}

// Count returns the number of documents q matches.
func (s *SearchService) Count(ctx context.Context, q *Query) (n int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("count", start, err) }()

	n, err = s.svc.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// MoreLikeThis returns documents similar to obj.
func (s *SearchService) MoreLikeThis(ctx context.Context, obj Object) (resp *Response, err error) {
	start := time.Now()
	defer func() { s.obs.observe("more_like_this", start, err) }()

	resp, err = s.svc.MoreLikeThis(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("more like this: %w", err)
	}
	return resp, nil
}
