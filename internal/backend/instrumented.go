package backend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	"github.com/kailas-cloud/searchdex/internal/metrics"
)

// Instrumented wraps a Backend with Prometheus metrics and debug logging.
type Instrumented struct {
	Backend
	logger *zap.Logger
}

// NewInstrumented decorates inner. A nil logger disables logging.
func NewInstrumented(inner Backend, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{Backend: inner, logger: logger.With(zap.String("backend", inner.Name()))}
}

func (b *Instrumented) observe(op string, start time.Time, err error) {
	duration := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.BackendRequestsTotal.WithLabelValues(b.Name(), op, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(b.Name(), op).Observe(duration.Seconds())

	if err != nil {
		b.logger.Error("Backend operation failed",
			zap.String("op", op),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("Backend operation completed",
		zap.String("op", op),
		zap.Duration("duration", duration),
	)
}

// Setup implements Backend.
func (b *Instrumented) Setup(ctx context.Context) error {
	start := time.Now()
	err := b.Backend.Setup(ctx)
	b.observe(OpSetup, start, err)
	return err
}

// Update implements Backend and counts indexed and skipped objects.
func (b *Instrumented) Update(
	ctx context.Context, idx *registry.Index, objs []model.Object, commit bool,
) ([]batch.Result, error) {
	start := time.Now()
	results, err := b.Backend.Update(ctx, idx, objs, commit)
	b.observe(OpUpdate, start, err)
	if err != nil {
		return results, err
	}

	label := idx.ObjectType().String()
	skipped := batch.Skipped(results)
	metrics.DocumentsIndexedTotal.WithLabelValues(b.Name(), label).Add(float64(len(results) - skipped))
	if skipped > 0 {
		metrics.IndexingFailuresTotal.WithLabelValues(b.Name(), label).Add(float64(skipped))
	}
	return results, nil
}

// Remove implements Backend.
func (b *Instrumented) Remove(ctx context.Context, obj model.Object, commit bool) error {
	start := time.Now()
	err := b.Backend.Remove(ctx, obj, commit)
	b.observe(OpRemove, start, err)
	return err
}

// Clear implements Backend.
func (b *Instrumented) Clear(ctx context.Context, types []model.Type, commit bool) error {
	start := time.Now()
	err := b.Backend.Clear(ctx, types, commit)
	b.observe(OpClear, start, err)
	return err
}

// Optimize implements Backend.
func (b *Instrumented) Optimize(ctx context.Context) error {
	start := time.Now()
	err := b.Backend.Optimize(ctx)
	b.observe(OpOptimize, start, err)
	return err
}

// Search implements Backend.
func (b *Instrumented) Search(ctx context.Context, q *Query) (*result.Response, error) {
	start := time.Now()
	resp, err := b.Backend.Search(ctx, q)
	b.observe(OpSearch, start, err)
	if err == nil {
		metrics.SearchHits.WithLabelValues(b.Name()).Observe(float64(resp.Hits))
	}
	return resp, err
}

// MoreLikeThis implements Backend.
func (b *Instrumented) MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error) {
	start := time.Now()
	resp, err := b.Backend.MoreLikeThis(ctx, obj)
	b.observe(OpMoreLikeThis, start, err)
	return resp, err
}

// Ping implements Backend.
func (b *Instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := b.Backend.Ping(ctx)
	b.observe(OpPing, start, err)
	return err
}
