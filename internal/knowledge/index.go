package knowledge

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// VectorIndex is an in-memory exhaustive-scan cosine similarity index.
// Entries keep insertion order, which breaks score ties deterministically.
// Safe for concurrent use: searches share a read lock, mutations take the
// write lock.
type VectorIndex struct {
	mu  sync.RWMutex
	dim int

	entries []indexEntry
	byID    map[string]int // id -> position in entries
}

type indexEntry struct {
	id     string
	vector []float32
	norm   float64 // precomputed magnitude; 0 for zero vectors
}

// Hit is a single search result.
type Hit struct {
	ID    string
	Score float64
}

// NewVectorIndex creates an empty index for vectors of the given dimension.
func NewVectorIndex(dim int) *VectorIndex {
	return &VectorIndex{
		dim:  dim,
		byID: make(map[string]int),
	}
}

// Dimension returns the configured vector dimension.
func (ix *VectorIndex) Dimension() int { return ix.dim }

// Len returns the number of indexed vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add indexes a vector under id. The vector is copied. Adding an existing
// id replaces its vector in place, keeping the original insertion position.
func (ix *VectorIndex) Add(id string, vector []float32) error {
	if len(vector) != ix.dim {
		return fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(vector), ix.dim)
	}

	v := make([]float32, len(vector))
	copy(v, vector)
	entry := indexEntry{id: id, vector: v, norm: magnitude(v)}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if pos, ok := ix.byID[id]; ok {
		ix.entries[pos] = entry
		return nil
	}
	ix.byID[id] = len(ix.entries)
	ix.entries = append(ix.entries, entry)
	return nil
}

// Remove drops the vector with the given id. Removing an unknown id is a
// no-op. Relative order of the remaining entries is preserved.
func (ix *VectorIndex) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos, ok := ix.byID[id]
	if !ok {
		return
	}
	ix.entries = append(ix.entries[:pos], ix.entries[pos+1:]...)
	delete(ix.byID, id)
	for i := pos; i < len(ix.entries); i++ {
		ix.byID[ix.entries[i].id] = i
	}
}

// Search scans every indexed vector and returns the top k by cosine
// similarity, descending. Ties keep insertion order. Zero-magnitude
// vectors (indexed or query side) score 0; ordering is purely by score,
// so they rank below every positive match but above negative-cosine
// entries. An empty index returns an empty slice.
func (ix *VectorIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	qnorm := magnitude(query)

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		var score float64
		if qnorm != 0 && e.norm != 0 {
			score = dot(query, e.vector) / (qnorm * e.norm)
		}
		hits = append(hits, Hit{ID: e.id, Score: score})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}
