package knowledge

import "time"

// Document is a unit of ingested content. Source is the origin URL, or
// "manual" for directly added text.
type Document struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Content     string            `json:"content"`
	ContentHash string            `json:"content_hash"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Chunk is an embeddable slice of a document. SequenceIndex is the chunk's
// position within its document, starting at 0.
type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	SequenceIndex int       `json:"sequence_index"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// IngestResult reports the outcome of one ingestion.
type IngestResult struct {
	// DocumentID identifies the stored document, whether newly created or
	// deduplicated.
	DocumentID string `json:"document_id"`

	// ChunksAdded is the number of chunks embedded and indexed by this call.
	// Zero when the document was reused.
	ChunksAdded int `json:"chunks_added"`

	// Reused is true when identical content was already stored and no new
	// document was created.
	Reused bool `json:"reused"`

	// FailedChunks lists the sequence indices of chunks whose embedding
	// failed after retries. The rest of the document was still ingested.
	FailedChunks []int `json:"failed_chunks,omitempty"`
}

// QueryResult is one retrieval hit: the matched chunk, its similarity score
// in [-1, 1], and the source document it belongs to.
type QueryResult struct {
	Chunk    Chunk    `json:"chunk"`
	Score    float64  `json:"score"`
	Document Document `json:"document"`
}

// Stats summarizes the stored corpus.
type Stats struct {
	DocumentCount int   `json:"document_count"`
	ChunkCount    int   `json:"chunk_count"`
	TotalBytes    int64 `json:"total_bytes"`
}
