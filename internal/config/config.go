// Package config loads codeindex configuration.
//
// Values are layered with the following precedence (highest first):
//
//  1. Environment variables prefixed with CODEINDEX_
//  2. A YAML configuration file
//  3. Built-in defaults
//
// Environment variables map onto sections by splitting on the first
// underscore after the prefix, so CODEINDEX_EMBEDDER_BASE_URL sets
// embedder.base_url and CODEINDEX_INDEXER_EXCLUDE accepts a comma separated
// list.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/internal/storage"
)

// EnvPrefix is the prefix for environment overrides
const EnvPrefix = "CODEINDEX_"

// Config holds the complete codeindex configuration.
type Config struct {
	Embedder EmbedderConfig `koanf:"embedder"`
	Indexer  IndexerConfig  `koanf:"indexer"`
	Storage  StorageConfig  `koanf:"storage"`
	Search   SearchConfig   `koanf:"search"`
	Log      LogConfig      `koanf:"log"`
}

// EmbedderConfig selects and tunes the embedding provider.
type EmbedderConfig struct {
	Provider    string        `koanf:"provider"` // hash, openai, jina, http or auto
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Dimension   int           `koanf:"dimension"`
	BatchSize   int           `koanf:"batch_size"`
	Concurrency int           `koanf:"concurrency"`
	CacheSize   int           `koanf:"cache_size"`
	RateLimit   float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Timeout     time.Duration `koanf:"timeout"`
	Normalize   bool          `koanf:"normalize"` // unit-length HTTP vectors
}

// IndexerConfig holds file selection and parse parallelism.
type IndexerConfig struct {
	MaxFileSize int64    `koanf:"max_file_size"`
	Include     []string `koanf:"include"`
	Exclude     []string `koanf:"exclude"`
	Workers     int      `koanf:"workers"`
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	Backend string `koanf:"backend"`
	DSN     string `koanf:"dsn"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	MaxResults    int     `koanf:"max_results"`
	MinSimilarity float64 `koanf:"min_similarity"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from the YAML file at path (skipped when path is
// empty) and then from the environment.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		content = data
	}
	return LoadBytes(content)
}

// LoadBytes is Load for YAML content already in memory.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps CODEINDEX_SECTION_FIELD_NAME to section.field_name
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = embedder.ProviderHash
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = embedder.DefaultBatchSize
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = embedder.DefaultCacheSize
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = 30 * time.Second
	}

	if cfg.Indexer.MaxFileSize == 0 {
		cfg.Indexer.MaxFileSize = source.DefaultMaxFileSize
	}
	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = 4
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendMemory
	}

	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}
	if cfg.Search.MinSimilarity == 0 {
		cfg.Search.MinSimilarity = 0.7
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks the configuration for values no component can accept.
func (c *Config) Validate() error {
	var errs []error

	if c.Embedder.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedder.dimension must not be negative"))
	}
	if c.Embedder.BatchSize < 1 || c.Embedder.BatchSize > embedder.MaxBatchSize {
		errs = append(errs, fmt.Errorf("embedder.batch_size must be between 1 and %d", embedder.MaxBatchSize))
	}
	if c.Embedder.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("embedder.concurrency must be positive"))
	}
	if c.Embedder.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("embedder.rate_limit must not be negative"))
	}

	if c.Indexer.Workers < 1 {
		errs = append(errs, fmt.Errorf("indexer.workers must be positive"))
	}
	filter := c.Filter()
	if err := filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("indexer: %w", err))
	}

	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendMemory, storage.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of memory, sqlite", c.Storage.Backend))
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > searcher.MaxLimit {
		errs = append(errs, fmt.Errorf("search.max_results must be between 1 and %d", searcher.MaxLimit))
	}
	if c.Search.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("search.min_similarity must not exceed 1"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ProviderConfig converts the embedder section for embedder.New
func (c *Config) ProviderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedder.Provider,
		Model:     c.Embedder.Model,
		BaseURL:   c.Embedder.BaseURL,
		APIKey:    c.Embedder.APIKey,
		Dimension: c.Embedder.Dimension,
		RateLimit: c.Embedder.RateLimit,
		Timeout:   c.Embedder.Timeout,
		Normalize: c.Embedder.Normalize,
	}
}

// StoreConfig converts the storage section for storage.Open
func (c *Config) StoreConfig(dimension int) storage.Config {
	return storage.Config{
		Backend:   c.Storage.Backend,
		DSN:       c.Storage.DSN,
		Dimension: dimension,
	}
}

// Filter converts the indexer section into a file filter
func (c *Config) Filter() source.Filter {
	return source.Filter{
		IncludePatterns:  c.Indexer.Include,
		ExcludePatterns:  c.Indexer.Exclude,
		MaxFileSizeBytes: c.Indexer.MaxFileSize,
	}
}
