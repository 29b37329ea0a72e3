package searchdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
)

// DocumentService keeps the engine in sync with application objects.
// Every write is committed immediately.
type DocumentService struct {
	svc indexingUseCase
	obs *observer
}

// UpdateResult summarizes an update call.
type UpdateResult struct {
	Items   []BatchResult
	Indexed int
	Skipped int
}

// Update indexes objs of type t. Objects whose fields cannot be prepared are
// skipped and reported in the result; engine failures abort the call.
func (s *DocumentService) Update(ctx context.Context, t Type, objs []Object) (res UpdateResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("update", start, err) }()

	items, err := s.svc.Update(ctx, t, objs, true)
	res = UpdateResult{Items: items, Skipped: batch.Skipped(items)}
	res.Indexed = len(items) - res.Skipped
	if err != nil {
		return res, fmt.Errorf("update %s: %w", t, err)
	}
	return res, nil
}

// Remove deletes obj from the index.
func (s *DocumentService) Remove(ctx context.Context, obj Object) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("remove", start, err) }()

	if err = s.svc.Remove(ctx, obj, true); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Clear deletes every document of the given types, or everything when no
// type is given.
func (s *DocumentService) Clear(ctx context.Context, types ...Type) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("clear", start, err) }()

	if err = s.svc.Clear(ctx, types, true); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}
