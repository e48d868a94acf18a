package config_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, want := cfg.DBPath, filepath.Join(home, ".mnemo", "knowledge.db"); got != want {
		t.Errorf("DBPath = %q, want %q", got, want)
	}
	if cfg.EmbedderModel != config.DefaultEmbedderModel {
		t.Errorf("EmbedderModel = %q, want %q", cfg.EmbedderModel, config.DefaultEmbedderModel)
	}
	if cfg.Dimension != 768 {
		t.Errorf("Dimension = %d, want 768", cfg.Dimension)
	}
	if cfg.ChunkTargetSize != 1200 || cfg.ChunkOverlap != 150 {
		t.Errorf("chunking = (%d, %d), want (1200, 150)", cfg.ChunkTargetSize, cfg.ChunkOverlap)
	}
	if cfg.CrawlConcurrency != 4 {
		t.Errorf("CrawlConcurrency = %d, want 4", cfg.CrawlConcurrency)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MNEMO_EMBEDDING_DIMENSION", "1536")
	t.Setenv("MNEMO_CRAWL_CONCURRENCY", "8")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dimension != 1536 {
		t.Errorf("Dimension = %d, want 1536 from env", cfg.Dimension)
	}
	if cfg.CrawlConcurrency != 8 {
		t.Errorf("CrawlConcurrency = %d, want 8 from env", cfg.CrawlConcurrency)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			DBPath:           "/tmp/x.db",
			EmbedderModel:    config.DefaultEmbedderModel,
			Dimension:        768,
			EmbedBatchSize:   16,
			ChunkTargetSize:  1200,
			ChunkOverlap:     150,
			CrawlConcurrency: 4,
			CrawlDelayMs:     500,
			CrawlTimeoutMs:   15000,
			CrawlMaxRetries:  2,
			CrawlUserAgent:   "test",
			MaxResponseBytes: 1 << 20,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{"valid", func(*config.Config) {}, nil},
		{"empty model", func(c *config.Config) { c.EmbedderModel = "" }, config.ErrInvalidEmbedderModel},
		{"zero dimension", func(c *config.Config) { c.Dimension = 0 }, config.ErrInvalidDimension},
		{"huge dimension", func(c *config.Config) { c.Dimension = 100000 }, config.ErrInvalidDimension},
		{"zero batch", func(c *config.Config) { c.EmbedBatchSize = 0 }, config.ErrInvalidBatchSize},
		{"tiny chunks", func(c *config.Config) { c.ChunkTargetSize = 10 }, config.ErrInvalidChunking},
		{"overlap >= target", func(c *config.Config) { c.ChunkOverlap = 1200 }, config.ErrInvalidChunking},
		{"negative overlap", func(c *config.Config) { c.ChunkOverlap = -1 }, config.ErrInvalidChunking},
		{"zero concurrency", func(c *config.Config) { c.CrawlConcurrency = 0 }, config.ErrInvalidCrawler},
		{"negative retries", func(c *config.Config) { c.CrawlMaxRetries = -1 }, config.ErrInvalidCrawler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
