package knowledge

import "errors"

var (
	// ErrNotFound indicates the requested document or chunk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates a vector's dimension differs from the
	// index's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrOrphanedChunk indicates the index returned a chunk whose document
	// no longer exists. Cascade deletion should make this impossible; it is
	// surfaced loudly rather than silently skipped.
	ErrOrphanedChunk = errors.New("orphaned chunk: document missing")

	// ErrEmbeddingFailed indicates the embedding provider failed after all
	// retries.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmptyContent indicates the input contained no indexable text.
	ErrEmptyContent = errors.New("empty content")
)
