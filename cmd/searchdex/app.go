package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/backend"
	blevebackend "github.com/kailas-cloud/searchdex/internal/backend/bleve"
	redisbackend "github.com/kailas-cloud/searchdex/internal/backend/redis"
	solrbackend "github.com/kailas-cloud/searchdex/internal/backend/solr"
	"github.com/kailas-cloud/searchdex/internal/config"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	logpkg "github.com/kailas-cloud/searchdex/internal/logger"
	"github.com/kailas-cloud/searchdex/internal/metrics"
	"github.com/kailas-cloud/searchdex/internal/render"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/searchdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// app is the composition root shared by every command.
type app struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	site    *registry.Site
	backend backend.Backend

	search   *searchuc.Service
	indexing *indexinguc.Service
	health   *healthuc.Service
}

func newApp(env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, logpkg.Options{Level: cfg.Logging.Level, Engine: cfg.Backend.Driver})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	site, err := cfg.Site()
	if err != nil {
		return nil, fmt.Errorf("register types: %w", err)
	}

	// Register backend metrics explicitly (no init())
	metrics.RegisterBackendMetrics()

	renderer := render.New(os.DirFS(cfg.Templates.Dir), cfg.Templates.CacheSize)
	inner, err := buildBackend(cfg.Backend, site, renderer, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Backend.Driver, err)
	}
	b := backend.NewInstrumented(inner, logger)

	logger.Info("Search backend configured",
		zap.String("driver", cfg.Backend.Driver),
		zap.Strings("types", cfg.TypeLabels()),
	)

	return &app{
		env:      env,
		cfg:      cfg,
		logger:   logger,
		site:     site,
		backend:  b,
		search:   searchuc.New(b, cfg.Search.PageSize, logger),
		indexing: indexinguc.New(b, site, logger).WithBatchSize(cfg.Search.BatchSize),
		health:   healthuc.New(b, site, logger),
	}, nil
}

// buildBackend creates the engine adapter selected by cfg.Driver.
func buildBackend(
	cfg config.BackendConfig,
	site *registry.Site,
	r field.Renderer,
	logger *zap.Logger,
) (backend.Backend, error) {
	switch cfg.Driver {
	case config.DriverSolr:
		return solrbackend.New(solrbackend.Config{
			URL:          cfg.Solr.URL,
			Timeout:      time.Duration(cfg.Solr.TimeoutSec) * time.Second,
			ManageSchema: cfg.Solr.ManageSchema,
		}, site, r, logger)
	case config.DriverRedis:
		return redisbackend.New(redisbackend.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Index:    cfg.Redis.Index,
			Prefix:   cfg.Redis.Prefix,
		}, site, r, logger)
	case config.DriverBleve:
		return blevebackend.New(blevebackend.Config{Path: cfg.Bleve.Path}, site, r, logger)
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}

// setup connects to the engine and prepares its schema.
func (a *app) setup(ctx context.Context) error {
	if err := a.backend.Setup(ctx); err != nil {
		return fmt.Errorf("setup %s: %w", a.backend.Name(), err)
	}
	return nil
}

func (a *app) close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("Failed to close backend", zap.Error(err))
	}
	_ = a.logger.Sync()
}
