// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MNEMO_* runtime overrides)
//  2. Config file (~/.mnemo/config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error wrapping one of the
// sentinel errors below, checkable with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates the chunk size/overlap combination is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidCrawler indicates a crawler setting is out of range.
	ErrInvalidCrawler = errors.New("invalid crawler configuration")

	// ErrInvalidBatchSize indicates the embedding batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")
)

// DefaultEmbedderModel is the default Gemini embedder model.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality (Matryoshka Representation Learning), which matches
// the default Dimension below.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// Storage
	DBPath string `mapstructure:"db_path"`

	// Embedding
	EmbedderModel  string `mapstructure:"embedder_model"`
	Dimension      int    `mapstructure:"embedding_dimension"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size"`

	// Chunking (see DESIGN.md for how the defaults were chosen)
	ChunkTargetSize int `mapstructure:"chunk_target_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap"`

	// Crawler
	CrawlConcurrency int    `mapstructure:"crawl_concurrency"`
	CrawlDelayMs     int    `mapstructure:"crawl_delay_ms"`
	CrawlTimeoutMs   int    `mapstructure:"crawl_timeout_ms"`
	CrawlMaxRetries  int    `mapstructure:"crawl_max_retries"`
	CrawlUserAgent   string `mapstructure:"crawl_user_agent"`
	MaxResponseBytes int64  `mapstructure:"max_response_bytes"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".mnemo")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("MNEMO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("db_path", filepath.Join(configDir, "knowledge.db"))

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedding_dimension", 768)
	v.SetDefault("embed_batch_size", 16)

	v.SetDefault("chunk_target_size", 1200)
	v.SetDefault("chunk_overlap", 150)

	v.SetDefault("crawl_concurrency", 4)
	v.SetDefault("crawl_delay_ms", 500)
	v.SetDefault("crawl_timeout_ms", 15000)
	v.SetDefault("crawl_max_retries", 2)
	v.SetDefault("crawl_user_agent", "mnemo/1.0 (+https://github.com/mnemo-ai/mnemo)")
	v.SetDefault("max_response_bytes", int64(10*1024*1024))
}

// Validate checks all configuration values and returns the first violation.
func (c *Config) Validate() error {
	if c.EmbedderModel == "" {
		return ErrInvalidEmbedderModel
	}
	if c.Dimension < 1 || c.Dimension > 8192 {
		return fmt.Errorf("%w: %d (must be 1-8192)", ErrInvalidDimension, c.Dimension)
	}
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 256 {
		return fmt.Errorf("%w: %d (must be 1-256)", ErrInvalidBatchSize, c.EmbedBatchSize)
	}
	if c.ChunkTargetSize < 100 {
		return fmt.Errorf("%w: target size %d below minimum 100", ErrInvalidChunking, c.ChunkTargetSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkTargetSize {
		return fmt.Errorf("%w: overlap %d must be in [0, target size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.CrawlConcurrency < 1 || c.CrawlConcurrency > 64 {
		return fmt.Errorf("%w: concurrency %d (must be 1-64)", ErrInvalidCrawler, c.CrawlConcurrency)
	}
	if c.CrawlTimeoutMs < 100 {
		return fmt.Errorf("%w: timeout %dms below minimum 100ms", ErrInvalidCrawler, c.CrawlTimeoutMs)
	}
	if c.CrawlMaxRetries < 0 || c.CrawlMaxRetries > 10 {
		return fmt.Errorf("%w: max retries %d (must be 0-10)", ErrInvalidCrawler, c.CrawlMaxRetries)
	}
	if c.MaxResponseBytes < 1024 {
		return fmt.Errorf("%w: max response bytes %d below minimum 1KiB", ErrInvalidCrawler, c.MaxResponseBytes)
	}
	return nil
}
