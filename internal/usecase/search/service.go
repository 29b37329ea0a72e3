// Package search runs engine-neutral queries against a backend and exposes
// the hits as lazily paged result sets.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Service compiles queries for one engine.
type Service struct {
	engine   Engine
	pageSize int
	logger   *zap.Logger
}

// New creates a search service. A non-positive pageSize uses DefaultPageSize.
func New(engine Engine, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, pageSize: pageSize, logger: logger}
}

// Run compiles q and returns its result set. The engine is not contacted
// until the result set is read.
func (s *Service) Run(q *Query) (*ResultSet, error) {
	compiled, err := q.Compile(s.engine)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	s.logger.Debug("Compiled query",
		zap.String("query", compiled.String),
		zap.Strings("sort", compiled.Sort),
		zap.Int("offset", compiled.Offset),
		zap.Int("limit", compiled.Limit),
	)
	return newResultSet(s.engine, compiled, s.pageSize), nil
}

// Count returns the number of hits of q within its window.
func (s *Service) Count(ctx context.Context, q *Query) (int, error) {
	rs, err := s.Run(q)
	if err != nil {
		return 0, err
	}
	return rs.Len(ctx)
}

// MoreLikeThis returns documents similar to obj.
func (s *Service) MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error) {
	resp, err := s.engine.MoreLikeThis(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("more like this %s: %w", model.Identifier(obj), err)
	}
	return resp, nil
}
