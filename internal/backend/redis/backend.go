// Package redis implements the search backend on RediSearch (Redis 8 or
// Redis Stack) through rueidis. Documents are stored as hashes under a key
// prefix and indexed by one FT index.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"
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
const Name = "redis"

// Defaults.
const (
	DefaultIndex  = "searchdex"
	DefaultPrefix = "searchdex:doc:"
	DefaultRows   = 20
	clearBatch    = 500
	facetWorkers  = 8
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Index is the FT index name.
	Index string
	// Prefix is prepended to document identifiers to form hash keys.
	Prefix string
}

// Backend stores documents as hashes and searches them with FT.SEARCH.
type Backend struct {
	*Compiler

	cfg    Config
	dial   func(Config) (rueidis.Client, error)
	client rueidis.Client
	site   *registry.Site
	render field.Renderer
	logger *zap.Logger

	lc     backend.Lifecycle
	schema *schema.Schema
}

// New validates cfg and creates a Backend. The connection is opened by Setup.
func New(cfg Config, site *registry.Site, r field.Renderer, logger *zap.Logger) (*Backend, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("%w: redis addrs is required", domain.ErrConfiguration)
	}
	return newBackend(cfg, nil, site, r, logger)
}

func newBackend(
	cfg Config, client rueidis.Client, site *registry.Site, r field.Renderer, logger *zap.Logger,
) (*Backend, error) {
	if site == nil {
		return nil, fmt.Errorf("%w: redis backend needs a site", domain.ErrConfiguration)
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if !isValidIdentifier(cfg.Index) {
		return nil, fmt.Errorf("%w: index name %q contains invalid characters", domain.ErrConfiguration, cfg.Index)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		Compiler: NewCompiler(site),
		cfg:      cfg,
		dial:     dial,
		client:   client,
		site:     site,
		render:   r,
		logger:   logger.With(zap.String("backend", Name)),
	}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// Setup connects and creates the index if it does not exist.
func (b *Backend) Setup(ctx context.Context) error {
	return b.lc.Ensure(ctx, b.setup)
}

func (b *Backend) setup(ctx context.Context) error {
	s, err := b.site.Schema()
	if err != nil {
		return err
	}
	fields, err := buildIndex(s)
	if err != nil {
		return err
	}

	if b.client == nil {
		client, err := b.dial(b.cfg)
		if err != nil {
			return &backend.Error{Op: backend.OpSetup, Err: err}
		}
		b.client = client
	}

	if err := b.ensureIndex(ctx, fields); err != nil {
		return err
	}
	b.schema = s
	return nil
}

func (b *Backend) key(identifier string) string { return b.cfg.Prefix + identifier }

// Update implements backend.Backend. Writes are visible immediately, so
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

	cmds := make(rueidis.Commands, len(docs))
	for i, doc := range docs {
		cmd := b.cmd().Hset().Key(b.key(doc[schema.FieldID])).FieldValue()
		for k, v := range doc {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	for i, res := range b.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return nil, wrap(backend.OpUpdate, "HSET", fmt.Errorf("key %s: %w", b.key(docs[i][schema.FieldID]), err))
		}
	}
	return results, nil
}

// Remove implements backend.Backend.
func (b *Backend) Remove(ctx context.Context, obj model.Object, _ bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	cmd := b.cmd().Del().Key(b.key(model.Identifier(obj))).Build()
	if err := b.do(ctx, cmd).Error(); err != nil {
		return wrap(backend.OpRemove, "DEL", err)
	}
	return nil
}

// Clear implements backend.Backend by deleting matching documents in
// batches until the index reports none left.
func (b *Backend) Clear(ctx context.Context, types []model.Type, _ bool) error {
	if err := b.Setup(ctx); err != nil {
		return err
	}
	q, err := b.Compile(filter.Expression{}, types, nil)
	if err != nil {
		return err
	}

	deleted := 0
	for {
		raw, err := b.do(ctx, b.ft(cmdSearch, q, "NOCONTENT", "LIMIT", "0", strconv.Itoa(clearBatch), "DIALECT", "2")).ToArray()
		if err != nil {
			return wrap(backend.OpClear, cmdSearch, err)
		}
		keys := make([]string, 0, len(raw))
		for _, m := range raw[min(1, len(raw)):] {
			if k, err := m.ToString(); err == nil {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			break
		}
		if err := b.do(ctx, b.cmd().Del().Key(keys...).Build()).Error(); err != nil {
			return wrap(backend.OpClear, "DEL", err)
		}
		deleted += len(keys)
	}

	b.logger.Info("Cleared documents",
		zap.Int("deleted", deleted),
		zap.String("query", q),
	)
	return nil
}

// Optimize is a no-op; RediSearch compacts its index in the background.
func (b *Backend) Optimize(context.Context) error { return nil }

// MoreLikeThis implements backend.Backend. RediSearch has no similarity
// query, so the response is always empty.
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
	if err := b.do(ctx, b.cmd().Ping().Build()).Error(); err != nil {
		return wrap(backend.OpPing, "PING", err)
	}
	return nil
}

// Close shuts down the client.
func (b *Backend) Close() error {
	if b.client != nil {
		b.client.Close()
	}
	return nil
}
