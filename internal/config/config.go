package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/field"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
)

// Backend drivers.
const (
	DriverSolr  = "solr"
	DriverRedis = "redis"
	DriverBleve = "bleve"
)

// Config holds the searchdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Search    SearchConfig    `yaml:"search"`
	Templates TemplatesConfig `yaml:"templates"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Types     []TypeConfig    `yaml:"types"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects the search engine and holds its connection settings.
type BackendConfig struct {
	Driver string      `yaml:"driver"` // solr, redis, bleve (default: bleve)
	Solr   SolrConfig  `yaml:"solr"`
	Redis  RedisConfig `yaml:"redis"`
	Bleve  BleveConfig `yaml:"bleve"`
}

// SolrConfig holds Solr core settings.
type SolrConfig struct {
	URL          string `yaml:"url"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	ManageSchema bool   `yaml:"manage_schema"`
}

// RedisConfig holds RediSearch connection settings.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Index    string   `yaml:"index"`
	Prefix   string   `yaml:"prefix"`
}

// BleveConfig holds embedded index settings.
type BleveConfig struct {
	Path string `yaml:"path"` // empty keeps the index in memory
}

// SearchConfig holds paging and batching settings.
type SearchConfig struct {
	PageSize    int `yaml:"page_size"`
	MaxPageSize int `yaml:"max_page_size"`
	BatchSize   int `yaml:"batch_size"`
}

// TemplatesConfig locates the field templates.
type TemplatesConfig struct {
	Dir       string `yaml:"dir"`
	CacheSize int    `yaml:"cache_size"`
}

// TypeConfig declares one indexed object type.
type TypeConfig struct {
	App               string        `yaml:"app"`
	Name              string        `yaml:"name"`
	VerboseNamePlural string        `yaml:"verbose_name_plural"`
	Fields            []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one search field of a type.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Document bool   `yaml:"document"`
	Attr     string `yaml:"attr"`
	Template string `yaml:"template"`
	Indexed  *bool  `yaml:"indexed"`
	Stored   *bool  `yaml:"stored"`
	Default  any    `yaml:"default"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverBleve
	}
	if c.Backend.Solr.TimeoutSec <= 0 {
		c.Backend.Solr.TimeoutSec = 10
	}
	if c.Backend.Redis.Index == "" {
		c.Backend.Redis.Index = "searchdex"
	}
	if c.Backend.Redis.Prefix == "" {
		c.Backend.Redis.Prefix = "searchdex:doc:"
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Search.BatchSize <= 0 {
		c.Search.BatchSize = 1000
	}
	if c.Templates.Dir == "" {
		c.Templates.Dir = "templates"
	}
	if c.Templates.CacheSize <= 0 {
		c.Templates.CacheSize = 256
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port must be between 1 and 65535, got %d", domain.ErrConfiguration, c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case DriverSolr:
		if c.Backend.Solr.URL == "" {
			return fmt.Errorf("%w: backend.solr.url is required", domain.ErrConfiguration)
		}
	case DriverRedis:
		if len(c.Backend.Redis.Addrs) == 0 {
			return fmt.Errorf("%w: backend.redis.addrs is required", domain.ErrConfiguration)
		}
	case DriverBleve:
	default:
		return fmt.Errorf("%w: backend.driver must be one of solr, redis, bleve, got %q",
			domain.ErrConfiguration, c.Backend.Driver)
	}
	if c.Search.PageSize > c.Search.MaxPageSize {
		return fmt.Errorf("%w: search.page_size %d exceeds search.max_page_size %d",
			domain.ErrConfiguration, c.Search.PageSize, c.Search.MaxPageSize)
	}

	seen := make(map[string]bool, len(c.Types))
	for i, t := range c.Types {
		if t.App == "" || t.Name == "" {
			return fmt.Errorf("%w: types[%d] needs app and name", domain.ErrConfiguration, i)
		}
		label := t.App + "." + t.Name
		if seen[label] {
			return fmt.Errorf("%w: type %s declared twice", domain.ErrConfiguration, label)
		}
		seen[label] = true
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: type %s has a field without a name", domain.ErrConfiguration, label)
			}
			if !field.Type(f.Type).Valid() {
				return fmt.Errorf("%w: type %s field %q has unknown type %q",
					domain.ErrConfiguration, label, f.Name, f.Type)
			}
		}
	}
	return nil
}

// Site registers every configured type in a new registry.
func (c *Config) Site() (*registry.Site, error) {
	site := registry.NewSite()
	for _, t := range c.Types {
		idx, err := t.Index()
		if err != nil {
			return nil, err
		}
		if err := site.Register(idx); err != nil {
			return nil, err
		}
	}
	if err := site.Check(); err != nil {
		return nil, err
	}
	return site, nil
}

// ObjectType returns the model type the declaration describes.
func (t TypeConfig) ObjectType() model.Type {
	mt := model.NewType(t.App, t.Name)
	if t.VerboseNamePlural != "" {
		mt.VerboseNamePlural = t.VerboseNamePlural
	}
	return mt
}

// Index builds the search index declared by t.
func (t TypeConfig) Index() (*registry.Index, error) {
	fields := make(map[string]*field.Field, len(t.Fields))
	for _, f := range t.Fields {
		fields[f.Name] = f.Field()
	}
	return registry.NewIndex(t.ObjectType(), fields)
}

// Field builds the field descriptor declared by f.
func (f FieldConfig) Field() *field.Field {
	var opts []field.Option
	if f.Document {
		opts = append(opts, field.Document())
	}
	switch {
	case f.Template != "":
		opts = append(opts, field.Template(f.Template))
	case f.Attr != "":
		opts = append(opts, field.Attr(f.Attr))
	default:
		// Without attr or template the field reads the attribute of its own name.
		opts = append(opts, field.Attr(f.Name))
	}
	if f.Indexed != nil {
		opts = append(opts, field.Indexed(*f.Indexed))
	}
	if f.Stored != nil {
		opts = append(opts, field.Stored(*f.Stored))
	}
	if f.Default != nil {
		opts = append(opts, field.Default(f.Default))
	}
	return field.New(field.Type(f.Type), opts...)
}

// TypeLabels lists the configured "app.name" labels in declaration order.
func (c *Config) TypeLabels() []string {
	out := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		out = append(out, t.App+"."+t.Name)
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
