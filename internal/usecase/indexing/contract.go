package indexing

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
)

// Writer is the write side of a search backend.
type Writer interface {
	Update(ctx context.Context, idx *registry.Index, objs []model.Object, commit bool) ([]batch.Result, error)
	Remove(ctx context.Context, obj model.Object, commit bool) error
	Clear(ctx context.Context, types []model.Type, commit bool) error
}

// Registry resolves object types to their registered indexes.
type Registry interface {
	Get(t model.Type) (*registry.Index, error)
}
