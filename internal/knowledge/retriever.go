package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Retriever answers semantic queries: it embeds the query, searches the
// index, and resolves each hit back to its chunk and source document.
type Retriever struct {
	store    *Store
	index    *VectorIndex
	embedder Embedder
	logger   *slog.Logger
}

// NewRetriever wires a retriever over the shared store, index and embedder.
func NewRetriever(store *Store, index *VectorIndex, embedder Embedder, logger *slog.Logger) *Retriever {
	return &Retriever{store: store, index: index, embedder: embedder, logger: logger}
}

// Query returns up to k results ordered by descending similarity. An empty
// index yields an empty slice, not an error. A hit whose document has
// vanished is an invariant violation and fails the whole query with
// ErrOrphanedChunk.
func (r *Retriever) Query(ctx context.Context, query string, k int) ([]QueryResult, error) {
	if r.index.Len() == 0 {
		return []QueryResult{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for query", ErrEmbeddingFailed, len(vectors))
	}

	hits, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := r.store.GetChunk(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: chunk %s", ErrOrphanedChunk, hit.ID)
			}
			return nil, err
		}
		doc, err := r.store.Get(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: chunk %s references document %s",
					ErrOrphanedChunk, chunk.ID, chunk.DocumentID)
			}
			return nil, err
		}
		results = append(results, QueryResult{Chunk: *chunk, Score: hit.Score, Document: *doc})
	}

	r.logger.Debug("query answered", "results", len(results), "k", k)
	return results, nil
}
