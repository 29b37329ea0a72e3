// Package indexing keeps the search index in step with application objects.
package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
)

// DefaultBatchSize is the number of objects sent to the backend per update.
const DefaultBatchSize = 1000

// Service writes objects of registered types to the backend in batches.
type Service struct {
	writer    Writer
	registry  Registry
	logger    *zap.Logger
	batchSize int
}

// New creates an indexing service.
func New(writer Writer, registry Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{writer: writer, registry: registry, logger: logger, batchSize: DefaultBatchSize}
}

// WithBatchSize configures the update batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Update indexes objs of type t. Objects that fail to prepare are reported
// as skipped results; a backend failure aborts the remaining batches and
// returns the results gathered so far.
func (s *Service) Update(ctx context.Context, t model.Type, objs []model.Object, commit bool) ([]batch.Result, error) {
	idx, err := s.registry.Get(t)
	if err != nil {
		return nil, err
	}

	results := make([]batch.Result, 0, len(objs))
	for start := 0; start < len(objs); start += s.batchSize {
		end := min(start+s.batchSize, len(objs))
		chunk, err := s.writer.Update(ctx, idx, objs[start:end], commit)
		if err != nil {
			return results, fmt.Errorf("update %s [%d:%d]: %w", t, start, end, err)
		}
		results = append(results, chunk...)
	}

	s.logger.Info("Indexed objects",
		zap.String("content_type", t.String()),
		zap.Int("total", len(objs)),
		zap.Int("skipped", batch.Skipped(results)),
	)
	return results, nil
}

// Remove deletes obj from the index.
func (s *Service) Remove(ctx context.Context, obj model.Object, commit bool) error {
	if _, err := s.registry.Get(obj.ObjectType()); err != nil {
		return err
	}
	if err := s.writer.Remove(ctx, obj, commit); err != nil {
		return fmt.Errorf("remove %s: %w", model.Identifier(obj), err)
	}
	return nil
}

// Clear deletes every document of types, or the whole index when types is
// empty.
func (s *Service) Clear(ctx context.Context, types []model.Type, commit bool) error {
	for _, t := range types {
		if _, err := s.registry.Get(t); err != nil {
			return err
		}
	}
	if err := s.writer.Clear(ctx, types, commit); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}
