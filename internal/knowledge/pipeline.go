package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Ingestor runs the ingestion pipeline: dedup check, chunking, batched
// embedding with retries, durable chunk storage, then index insertion.
type Ingestor struct {
	store     *Store
	chunker   *Chunker
	index     *VectorIndex
	embedder  Embedder
	batchSize int
	logger    *slog.Logger
}

// DefaultEmbedBatchSize is the number of chunks embedded per provider call.
const DefaultEmbedBatchSize = 16

// NewIngestor wires the pipeline. batchSize <= 0 falls back to the default.
func NewIngestor(store *Store, chunker *Chunker, index *VectorIndex, embedder Embedder, batchSize int, logger *slog.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Ingestor{
		store:     store,
		chunker:   chunker,
		index:     index,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Ingest stores content and makes it searchable. Identical content (after
// normalization) short-circuits to the existing document with Reused set.
// Embedding failures degrade per batch: failed chunk indices are reported
// in FailedChunks while the rest of the document is ingested. Only when
// every chunk fails is the document rolled back and an error returned.
func (in *Ingestor) Ingest(ctx context.Context, source, content string, metadata map[string]string) (*IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	doc, created, err := in.store.Put(ctx, source, content, metadata)
	if err != nil {
		return nil, err
	}
	if !created {
		in.logger.Debug("content already stored", "id", doc.ID, "source", source)
		return &IngestResult{DocumentID: doc.ID, Reused: true}, nil
	}

	pieces := in.chunker.Split(content)

	embedded, failed, embedErr := in.embedBatches(ctx, pieces)

	if len(embedded) == 0 {
		// Nothing usable: remove the document row so a later attempt can
		// retry rather than hit the dedup short-circuit.
		if _, derr := in.store.Delete(ctx, doc.ID); derr != nil && !errors.Is(derr, ErrNotFound) {
			in.logger.Error("rollback of unembeddable document failed", "id", doc.ID, "error", derr)
		}
		return nil, fmt.Errorf("ingesting %q: %w", source, embedErr)
	}

	now := time.Now().UTC()
	chunks := make([]Chunk, 0, len(embedded))
	for _, e := range embedded {
		chunks = append(chunks, Chunk{
			ID:            uuid.New().String(),
			DocumentID:    doc.ID,
			SequenceIndex: e.seq,
			Content:       pieces[e.seq],
			Embedding:     e.vector,
			CreatedAt:     now,
		})
	}

	// Durable first, searchable second: index entries always have a
	// backing row.
	if err := in.store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("persisting chunks for %q: %w", source, err)
	}
	for _, c := range chunks {
		if err := in.index.Add(c.ID, c.Embedding); err != nil {
			return nil, fmt.Errorf("indexing chunk %d of %q: %w", c.SequenceIndex, source, err)
		}
	}

	in.logger.Info("document ingested",
		"id", doc.ID, "source", source, "chunks", len(chunks), "failed_chunks", len(failed))

	return &IngestResult{
		DocumentID:   doc.ID,
		ChunksAdded:  len(chunks),
		FailedChunks: failed,
	}, nil
}

// Delete removes a document from the store and drops its chunks from the
// index, returning how many chunks were removed. The inverse of Ingest.
func (in *Ingestor) Delete(ctx context.Context, documentID string) (int, error) {
	chunkIDs, err := in.store.Delete(ctx, documentID)
	if err != nil {
		return 0, err
	}
	for _, id := range chunkIDs {
		in.index.Remove(id)
	}
	in.logger.Info("document deleted", "id", documentID, "chunks", len(chunkIDs))
	return len(chunkIDs), nil
}

type embeddedChunk struct {
	seq    int
	vector []float32
}

// embedBatches embeds pieces in fixed-size batches, retrying each batch
// before declaring its chunks failed. It returns successful embeddings in
// sequence order, the failed sequence indices, and the last provider error.
func (in *Ingestor) embedBatches(ctx context.Context, pieces []string) ([]embeddedChunk, []int, error) {
	var (
		embedded []embeddedChunk
		failed   []int
		lastErr  error
	)

	for start := 0; start < len(pieces); start += in.batchSize {
		end := min(start+in.batchSize, len(pieces))
		batch := pieces[start:end]

		var vectors [][]float32
		op := func() error {
			var err error
			vectors, err = in.embedder.Embed(ctx, batch)
			return err
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxInterval = 2 * time.Second

		err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx))
		if err != nil {
			in.logger.Warn("embedding batch failed after retries",
				"from", start, "to", end, "error", err)
			for seq := start; seq < end; seq++ {
				failed = append(failed, seq)
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for i, v := range vectors {
			embedded = append(embedded, embeddedChunk{seq: start + i, vector: v})
		}
	}

	if lastErr == nil {
		lastErr = ErrEmbeddingFailed
	}
	return embedded, failed, lastErr
}
