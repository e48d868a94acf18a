package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists documents and chunks in SQLite. It is the single source of
// truth; the vector index is rebuilt from it at startup.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a store over an already migrated database handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Put inserts a document unless content with the same fingerprint is
// already stored. It returns the stored document and whether this call
// created it. On dedup the existing document is returned unchanged, even
// if source or metadata differ.
func (s *Store) Put(ctx context.Context, source, content string, metadata map[string]string) (*Document, bool, error) {
	hash := Fingerprint(content)

	existing, err := s.getByHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, false, fmt.Errorf("encoding metadata: %w", err)
	}

	doc := &Document{
		ID:          uuid.New().String(),
		Source:      source,
		Content:     content,
		ContentHash: hash,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, source, content, content_hash, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Source, doc.Content, doc.ContentHash, string(meta), doc.CreatedAt)
	if err != nil {
		// Lost a race on the unique hash: return the winner.
		if winner, gerr := s.getByHash(ctx, hash); gerr == nil {
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("document stored", "id", doc.ID, "source", source, "bytes", len(content))
	return doc, true, nil
}

// Get returns the document with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, source, content, content_hash, metadata, created_at
		 FROM documents WHERE id = ?`, id))
}

func (s *Store) getByHash(ctx context.Context, hash string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, source, content, content_hash, metadata, created_at
		 FROM documents WHERE content_hash = ?`, hash))
}

func (s *Store) scanDocument(row *sql.Row) (*Document, error) {
	var doc Document
	var meta string
	err := row.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.ContentHash, &meta, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &doc, nil
}

// Delete removes the document and, via cascade, its chunks. It returns the
// ids of the removed chunks so the caller can drop them from the live
// index, or ErrNotFound if no such document exists.
func (s *Store) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for delete: %w", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chunks for delete: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("document deleted", "id", id, "chunks", len(chunkIDs))
	return chunkIDs, nil
}

// ListRecent returns up to limit documents, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, content_hash, metadata, created_at
		 FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var meta string
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.ContentHash, &meta, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SearchDocuments returns up to limit documents whose content, source or
// metadata contain the query as a substring, newest first. This is the
// keyword complement to the vector search: exact terms, ids and URLs that
// embeddings blur.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, content_hash, metadata, created_at
		 FROM documents
		 WHERE content LIKE ? ESCAPE '\' OR source LIKE ? ESCAPE '\' OR metadata LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var meta string
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.ContentHash, &meta, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Stats returns corpus totals. TotalBytes counts raw document content.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(CAST(content AS BLOB))), 0) FROM documents`,
	).Scan(&st.DocumentCount, &st.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount)
	if err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	return st, nil
}

// InsertChunks stores the given chunks in a single transaction. All chunks
// must belong to an existing document; durable once this returns.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, sequence_index, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.SequenceIndex, c.Content, encodeVector(c.Embedding), c.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.SequenceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunk returns the chunk with the given id, or ErrNotFound.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	var c Chunk
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, sequence_index, content, embedding, created_at
		 FROM chunks WHERE id = ?`, id).
		Scan(&c.ID, &c.DocumentID, &c.SequenceIndex, &c.Content, &blob, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Embedding = decodeVector(blob)
	return &c, nil
}

// ChunkCount returns the number of chunks stored for the document.
func (s *Store) ChunkCount(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// ChunkVector pairs a chunk id with its stored embedding.
type ChunkVector struct {
	ID        string
	Embedding []float32
}

// LoadChunkVectors returns every stored (chunk id, embedding) pair in
// insertion order, for rebuilding the vector index at startup.
func (s *Store) LoadChunkVectors(ctx context.Context) ([]ChunkVector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("loading chunk vectors: %w", err)
	}
	defer rows.Close()

	var out []ChunkVector
	for rows.Next() {
		var cv ChunkVector
		var blob []byte
		if err := rows.Scan(&cv.ID, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk vector: %w", err)
		}
		cv.Embedding = decodeVector(blob)
		out = append(out, cv)
	}
	return out, rows.Err()
}

// encodeVector serializes an embedding as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
