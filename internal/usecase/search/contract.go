package search

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Engine is the part of a search backend the service drives.
type Engine interface {
	backend.Compiler

	Search(ctx context.Context, q *backend.Query) (*result.Response, error)
	MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error)
}
