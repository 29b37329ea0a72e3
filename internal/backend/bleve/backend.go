// Package bleve implements the search backend on an embedded bleve index,
// either in memory or on local disk. It needs no external service, which
// makes it the default for development and tests.
package bleve

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/schema"
	"github.com/kailas-cloud/searchdex/internal/domain/search/filter"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
)

// Name is the driver name.
const Name = "bleve"

// Defaults.
const (
	DefaultRows = 20
	clearBatch  = 500
	facetSize   = 100
)

// Config selects where the index lives.
type Config struct {
	// Path is the index directory. Empty keeps the index in memory.
	Path string
}

// Backend indexes documents into a local bleve index.
type Backend struct {
	*Compiler

	cfg    Config
	site   *registry.Site
	render field.Renderer
	logger *zap.Logger

	lc     backend.Lifecycle
	index  bleve.Index
	schema *schema.Schema
}

// New creates a Backend. The index is opened or created by Setup.
func New(cfg Config, site *registry.Site, r field.Renderer, logger *zap.Logger) (*Backend, error) {
	if site == nil {
		return nil, fmt.Errorf("%w: bleve backend needs a site", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		Compiler: NewCompiler(site),
		cfg:      cfg,
		site:     site,
		render:   r,
		logger:   logger.With(zap.String("backend", Name)),
	}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// Setup opens the index, creating it with a mapping derived from the
// schema when it does not exist yet.
func (b *Backend) Setup(ctx context.Context) error {
	return b.lc.Ensure(ctx, b.setup)
}

func (b *Backend) setup(context.Context) error {
	s, err := b.site.Schema()
	if err != nil {
		return err
	}
	im, err := buildMapping(s)
	if err != nil {
		return err
	}

	idx, err := b.open(im)
	if err != nil {
		return &backend.Error{Op: backend.OpSetup, Err: err}
	}
	b.index = idx
	b.schema = s
	return nil
}

func (b *Backend) open(im mapping.IndexMapping) (bleve.Index, error) {
	if b.cfg.Path == "" {
		b.logger.Debug("Using in-memory index")
		return bleve.NewMemOnly(im)
	}

	idx, err := bleve.Open(b.cfg.Path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(b.cfg.Path, im)
		if err != nil {
			return nil, fmt.Errorf("create index %s: %w", b.cfg.Path, err)
		}
		b.logger.Info("Created index", zap.String("path", b.cfg.Path))
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", b.cfg.Path, err)
	}
	b.logger.Debug("Using existing index", zap.String("path", b.cfg.Path))
	return idx, nil
}

// Update implements backend.Backend. Batches are applied synchronously, so
// commit is ignored.
func (b *Backend) Update(
	ctx context.Context, idx *registry.Index, objs []model.Object, _ bool,
) ([]batch.Result, error) {
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}

	docs, results := backend.PrepareBatch(idx, objs, b.render, encoder(idx), b.logger)
	if len(docs) == 0 {
		return results, nil
	}

	bt := b.index.NewBatch()
	for _, doc := range docs {
		id := fmt.Sprint(doc[schema.FieldID])
		if err := bt.Index(id, doc); err != nil {
			return nil, &backend.Error{Op: backend.OpUpdate, Err: fmt.Errorf("document %s: %w", id, err)}
		}
	}
	if err := b.index.Batch(bt); err != nil {
		return nil, &backend.Error{Op: backend.OpUpdate, Err: err}
	}
	return results, nil
}

// Remove implements backend.Backend.
func (b *Backend) Remove(ctx context.Context, obj model.Object, _ bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	if err := b.index.Delete(model.Identifier(obj)); err != nil {
		return &backend.Error{Op: backend.OpRemove, Err: err}
	}
	return nil
}

// Clear implements backend.Backend by deleting matching documents in
// batches until none are left.
func (b *Backend) Clear(ctx context.Context, types []model.Type, _ bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	raw, err := b.Compile(filter.Expression{}, types, nil)
	if err != nil {
		return err
	}
	q, err := query.ParseQuery([]byte(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCompilation, err)
	}

	deleted := 0
	for {
		res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, clearBatch, 0, false))
		if err != nil {
			return &backend.Error{Op: backend.OpClear, Err: err}
		}
		if len(res.Hits) == 0 {
			break
		}
		bt := b.index.NewBatch()
		for _, hit := range res.Hits {
			bt.Delete(hit.ID)
		}
		if err := b.index.Batch(bt); err != nil {
			return &backend.Error{Op: backend.OpClear, Err: err}
		}
		deleted += len(res.Hits)
	}

	b.logger.Info("Cleared documents",
		zap.Int("deleted", deleted),
		zap.Int("types", len(types)),
	)
	return nil
}

// Optimize is a no-op; bleve merges segments in the background.
func (b *Backend) Optimize(context.Context) error { return nil }

// MoreLikeThis implements backend.Backend. bleve has no similarity query,
// so the response is always empty.
func (b *Backend) MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error) {
	if err := b.Setup(ctx); err != nil {
		return nil, err
	}
	if _, err := b.site.Get(obj.ObjectType()); err != nil {
		return nil, err
	}
	return result.Empty(), nil
}

// Ping implements backend.Backend.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	if _, err := b.index.DocCount(); err != nil {
		return &backend.Error{Op: backend.OpPing, Err: err}
	}
	return nil
}

// Close closes the index. The backend cannot be used afterwards.
func (b *Backend) Close() error {
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
