package searchdex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	blevebackend "github.com/kailas-cloud/searchdex/internal/backend/bleve"
	redisbackend "github.com/kailas-cloud/searchdex/internal/backend/redis"
	solrbackend "github.com/kailas-cloud/searchdex/internal/backend/solr"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	"github.com/kailas-cloud/searchdex/internal/render"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/searchdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

const (
	defaultSolrTimeout = 10 * time.Second
	defaultRedisIndex  = "searchdex"
	defaultRedisPrefix = "searchdex:doc:"
	defaultTemplateDir = "templates"
)

// Internal interfaces, swapped for mocks in tests.
type searchUseCase interface {
	Run(q *searchuc.Query) (*searchuc.ResultSet, error)
	Count(ctx context.Context, q *searchuc.Query) (int, error)
	MoreLikeThis(ctx context.Context, obj model.Object) (*result.Response, error)
}

type indexingUseCase interface {
	Update(ctx context.Context, t model.Type, objs []model.Object, commit bool) ([]batch.Result, error)
	Remove(ctx context.Context, obj model.Object, commit bool) error
	Clear(ctx context.Context, types []model.Type, commit bool) error
}

// Client is the searchdex SDK entry point.
type Client struct {
	backend     backend.Backend
	site        *registry.Site
	searchSvc   searchUseCase
	indexingSvc indexingUseCase
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client, connects to the configured engine and prepares its
// schema for the registered indexes. The context bounds the setup call.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.driver == "" {
		return nil, fmt.Errorf("%w: searchdex: engine required (use WithSolr, WithRedis or WithBleve)",
			ErrConfiguration)
	}

	site := registry.NewSite()
	for _, idx := range cfg.indexes {
		if err := site.Register(idx); err != nil {
			return nil, fmt.Errorf("searchdex: %w", err)
		}
	}
	if err := site.Check(); err != nil {
		return nil, fmt.Errorf("searchdex: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b, err := createBackend(cfg, site, logger)
	if err != nil {
		return nil, err
	}
	if err := b.Setup(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("searchdex: setup %s: %w", b.Name(), err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return wireClient(b, site, cfg, logger, obs), nil
}

func createBackend(cfg *clientConfig, site *registry.Site, logger *zap.Logger) (backend.Backend, error) {
	fsys := cfg.templates
	if fsys == nil {
		fsys = os.DirFS(defaultTemplateDir)
	}
	r := render.New(fsys, cfg.templateCache)

	var (
		b   backend.Backend
		err error
	)
	switch cfg.driver {
	case "solr":
		b, err = solrbackend.New(solrbackend.Config{
			URL:     cfg.solrURL,
			Timeout: defaultSolrTimeout,
		}, site, r, logger)
	case "redis":
		b, err = redisbackend.New(redisbackend.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			Index:    defaultRedisIndex,
			Prefix:   defaultRedisPrefix,
		}, site, r, logger)
	case "bleve":
		b, err = blevebackend.New(blevebackend.Config{Path: cfg.blevePath}, site, r, logger)
	default:
		return nil, fmt.Errorf("%w: searchdex: unknown driver %q", ErrConfiguration, cfg.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("searchdex: create %s backend: %w", cfg.driver, err)
	}
	return backend.NewInstrumented(b, logger), nil
}

func wireClient(
	b backend.Backend, site *registry.Site, cfg *clientConfig, logger *zap.Logger, obs *observer,
) *Client {
	pageSize := cfg.pageSize
	if pageSize <= 0 {
		pageSize = searchuc.DefaultPageSize
	}
	indexingSvc := indexinguc.New(b, site, logger)
	if cfg.batchSize > 0 {
		indexingSvc = indexingSvc.WithBatchSize(cfg.batchSize)
	}

	return &Client{
		backend:     b,
		site:        site,
		searchSvc:   searchuc.New(b, pageSize, logger),
		indexingSvc: indexingSvc,
		healthSvc:   healthuc.New(b, site, logger),
		obs:         obs,
	}
}

// Close releases all resources.
func (c *Client) Close() error {
	if c.backend == nil {
		return nil
	}
	if err := c.backend.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Ping checks engine connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.backend == nil {
		return errors.New("searchdex: client not connected")
	}
	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Optimize asks the engine to compact its index.
func (c *Client) Optimize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("optimize", start, err) }()

	if err = c.backend.Optimize(ctx); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

// Models lists the registered types as labelled choices, sorted by label.
func (c *Client) Models() []Choice {
	return c.site.ModelChoices()
}

// Lookup resolves an "app.model" label to a registered type.
func (c *Client) Lookup(label string) (Type, error) {
	t, err := c.site.Lookup(label)
	if err != nil {
		return Type{}, fmt.Errorf("lookup: %w", err)
	}
	return t, nil
}

// Search returns the search service.
func (c *Client) Search() *SearchService {
	return &SearchService{svc: c.searchSvc, obs: c.obs}
}

// Documents returns the indexing service.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{svc: c.indexingSvc, obs: c.obs}
}
