package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/gofrs/flock"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/crawler"
	"github.com/mnemo-ai/mnemo/internal/database"
	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

// App holds the wired application components. Built once per command
// invocation; Close releases the database and its lock.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *knowledge.Store
	Index     *knowledge.VectorIndex
	Ingestor  *knowledge.Ingestor
	Retriever *knowledge.Retriever
	Crawler   *crawler.Crawler

	db   *sql.DB
	lock *flock.Flock
}

// newApp loads configuration and wires every component, including the
// startup warm load of the vector index from persisted chunks.
func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	// One process per database file. The store and the in-memory index
	// must not diverge through a second writer.
	lock := flock.New(cfg.DBPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring database lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("database %s is in use by another mnemo process", cfg.DBPath)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, db: db, lock: lock}

	a.Store = knowledge.NewStore(db, logger)
	a.Index = knowledge.NewVectorIndex(cfg.Dimension)
	if err := a.warmIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := provideEmbedder(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	chunker := knowledge.NewChunker(cfg.ChunkTargetSize, cfg.ChunkOverlap)
	a.Ingestor = knowledge.NewIngestor(a.Store, chunker, a.Index, embedder, cfg.EmbedBatchSize, logger)
	a.Retriever = knowledge.NewRetriever(a.Store, a.Index, embedder, logger)

	fetcher := crawler.NewHTTPFetcher(crawler.HTTPFetcherConfig{
		UserAgent:    cfg.CrawlUserAgent,
		Timeout:      time.Duration(cfg.CrawlTimeoutMs) * time.Millisecond,
		MaxRetries:   cfg.CrawlMaxRetries,
		MaxBodyBytes: cfg.MaxResponseBytes,
	}, logger)
	a.Crawler = crawler.New(fetcher, a.Ingestor, cfg.CrawlConcurrency,
		time.Duration(cfg.CrawlDelayMs)*time.Millisecond, logger)

	return a, nil
}

// warmIndex rebuilds the in-memory index from persisted chunks, in
// insertion order so tie-breaks match the original ingestion order.
func (a *App) warmIndex(ctx context.Context) error {
	vectors, err := a.Store.LoadChunkVectors(ctx)
	if err != nil {
		return err
	}
	for _, cv := range vectors {
		if err := a.Index.Add(cv.ID, cv.Embedding); err != nil {
			if errors.Is(err, knowledge.ErrDimensionMismatch) {
				return fmt.Errorf("stored chunk %s does not match configured dimension %d "+
					"(was the database created with a different embedding_dimension?): %w",
					cv.ID, a.Config.Dimension, err)
			}
			return err
		}
	}
	a.Logger.Debug("vector index loaded", "vectors", a.Index.Len())
	return nil
}

func provideEmbedder(ctx context.Context, cfg *config.Config) (knowledge.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with the googleai plugin (is GEMINI_API_KEY set?)")
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	return knowledge.NewGenkitEmbedder(embedder), nil
}

// Close releases the database handle and the process lock.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Warn("closing database", "error", err)
		}
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			a.Logger.Warn("releasing database lock", "error", err)
		}
	}
}
