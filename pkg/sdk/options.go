package searchdex

import (
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver string // "solr", "redis" or "bleve"

	solrURL string

	addrs    []string
	password string

	blevePath string

	indexes []*Index

	templates     fs.FS
	templateCache int

	pageSize  int
	batchSize int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithSolr configures the client to use the Solr core at url,
// e.g. "http://localhost:8983/solr/notes".
func WithSolr(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "solr"
		c.solrURL = url
	})
}

// WithRedis configures the client to use RediSearch on a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBleve configures an embedded bleve index stored at path.
// An empty path keeps the index in memory.
func WithBleve(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "bleve"
		c.blevePath = path
	})
}

// WithIndexes registers the search indexes of the client's object types.
func WithIndexes(idx ...*Index) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexes = append(c.indexes, idx...)
	})
}

// WithTemplates sets the file system holding field templates
// ("search/indexes/<app>/<model>_<field>.txt"). Defaults to ./templates.
func WithTemplates(fsys fs.FS, cacheSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.templates = fsys
		c.templateCache = cacheSize
	})
}

// WithPageSize sets how many hits a result set fetches per engine call.
// Default: 20.
func WithPageSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.pageSize = size
	})
}

// WithBatchSize sets how many objects are sent to the engine per update call.
// Default: 1000.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
