// Package backend defines the search engine strategy interface, the compiled
// query passed to it, and helpers shared by every engine adapter.
package backend

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Compiler lowers filter expressions into an engine's native query string.
type Compiler interface {
	// MatchAll returns the token matching every document.
	MatchAll() string
	// Compile renders expr, restricted to models when given, with boosts appended.
	Compile(expr filter.Expression, models []model.Type, boosts []Boost) (string, error)
	// Clean escapes an untrusted user fragment for embedding in a query.
	Clean(fragment string) string
}

// Backend is one search engine integration.
//
//nolint:interfacebloat // strategy surface; consumers declare narrow interfaces
type Backend interface {
	Compiler

	// Name identifies the engine in logs and metrics.
	Name() string
	// Setup performs the connection and schema work once. Failed setups are
	// retried on the next call.
	Setup(ctx context.Context) error
	Update(ctx context.Context, idx *registry.Index, objs []model.Object, commit bool) ([]batch.Result, error)
	Remove(ctx context.Context, obj model.Object, commit bool) error
	Clear(ctx context.Context, types []model.Type, commit bool) error
	Optimize(ctx context.Context) error
	Search(ctx context.Context, q *Query) (*result.Response, error)
	MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error)
	Ping(ctx context.Context) error
	Close() error
}

// Boost raises the relevance of documents containing Term.
type Boost struct {
	Term   string
	Weight float64
}
