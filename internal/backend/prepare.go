package backend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
)

// Encoder converts a prepared document into an engine payload.
type Encoder[T any] func(doc map[string]any) (T, error)

// PrepareBatch prepares and encodes each object. Objects that fail are
// skipped with a warning; the rest are returned for submission. results has
// one entry per object, in input order.
func PrepareBatch[T any](
	idx *registry.Index, objs []model.Object, r field.Renderer, encode Encoder[T], logger *zap.Logger,
) (payloads []T, results []batch.Result) {
	payloads = make([]T, 0, len(objs))
	results = make([]batch.Result, 0, len(objs))

	for _, obj := range objs {
		id := model.Identifier(obj)
		payload, err := prepareOne(idx, obj, r, encode)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", domain.ErrIndexing, id, err)
			logger.Warn("Skipping object that failed to prepare",
				zap.String("id", id),
				zap.Error(err),
			)
			results = append(results, batch.NewSkipped(id, err))
			continue
		}
		payloads = append(payloads, payload)
		results = append(results, batch.NewIndexed(id))
	}
	return payloads, results
}

func prepareOne[T any](idx *registry.Index, obj model.Object, r field.Renderer, encode Encoder[T]) (T, error) {
	var zero T
	doc, err := idx.Prepare(obj, r)
	if err != nil {
		return zero, err
	}
	payload, err := encode(doc)
	if err != nil {
		return zero, fmt.Errorf("encode: %w", err)
	}
	return payload, nil
}

// Pass is an Encoder that returns the document unchanged.
func Pass(doc map[string]any) (map[string]any, error) { return doc, nil }
