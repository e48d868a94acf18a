package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/knowledge"
	"github.com/mnemo-ai/mnemo/internal/log"
	"github.com/mnemo-ai/mnemo/internal/testutil"
)

const testDim = 4

func newTestIngestor(t *testing.T, emb *testutil.FakeEmbedder, batchSize int) (*knowledge.Ingestor, *knowledge.Store, *knowledge.VectorIndex) {
	t.Helper()
	store := newTestStore(t)
	index := knowledge.NewVectorIndex(testDim)
	chunker := knowledge.NewChunker(100, 10)
	ing := knowledge.NewIngestor(store, chunker, index, emb, batchSize, log.NewNop())
	return ing, store, index
}

func TestIngest_StoresAndIndexes(t *testing.T) {
	ing, store, index := newTestIngestor(t, testutil.NewFakeEmbedder(testDim), 16)
	ctx := context.Background()

	content := strings.Repeat("All work and no play makes a dull day. ", 20)
	res, err := ing.Ingest(ctx, "manual", content, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Reused {
		t.Error("Reused = true for new content")
	}
	if res.ChunksAdded < 2 {
		t.Errorf("ChunksAdded = %d, want several", res.ChunksAdded)
	}
	if len(res.FailedChunks) != 0 {
		t.Errorf("FailedChunks = %v, want none", res.FailedChunks)
	}

	if index.Len() != res.ChunksAdded {
		t.Errorf("index has %d vectors, want %d", index.Len(), res.ChunksAdded)
	}
	n, err := store.ChunkCount(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("ChunkCount() error = %v", err)
	}
	if n != res.ChunksAdded {
		t.Errorf("stored %d chunks, result says %d", n, res.ChunksAdded)
	}
}

func TestIngest_DeduplicatesContent(t *testing.T) {
	ing, _, index := newTestIngestor(t, testutil.NewFakeEmbedder(testDim), 16)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, "manual", "identical content here", nil)
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	indexed := index.Len()

	second, err := ing.Ingest(ctx, "https://other.example", "Identical   CONTENT here", nil)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if !second.Reused {
		t.Error("Reused = false, want dedup")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("dedup id = %s, want %s", second.DocumentID, first.DocumentID)
	}
	if second.ChunksAdded != 0 {
		t.Errorf("ChunksAdded = %d on dedup, want 0", second.ChunksAdded)
	}
	if index.Len() != indexed {
		t.Errorf("index grew on dedup: %d -> %d", indexed, index.Len())
	}
}

func TestIngest_EmptyContent(t *testing.T) {
	ing, store, _ := newTestIngestor(t, testutil.NewFakeEmbedder(testDim), 16)
	ctx := context.Background()

	for _, in := range []string{"", "   \n\t  "} {
		if _, err := ing.Ingest(ctx, "manual", in, nil); !errors.Is(err, knowledge.ErrEmptyContent) {
			t.Errorf("Ingest(%q) error = %v, want ErrEmptyContent", in, err)
		}
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.DocumentCount != 0 {
		t.Errorf("empty input created %d documents", st.DocumentCount)
	}
}

func TestIngest_AllBatchesFailRollsBack(t *testing.T) {
	emb := testutil.NewFakeEmbedder(testDim)
	emb.FailFirst = 1000 // never recovers
	ing, store, index := newTestIngestor(t, emb, 16)
	ctx := context.Background()

	_, err := ing.Ingest(ctx, "manual", "content that cannot be embedded", nil)
	if err == nil {
		t.Fatal("Ingest() error = nil, want failure when every chunk fails")
	}
	if !errors.Is(err, testutil.ErrEmbedderDown) {
		t.Errorf("error = %v, want wrapped provider error", err)
	}

	// The document row must be gone so a later attempt is not deduplicated
	// against a chunkless document.
	st, serr := store.Stats(ctx)
	if serr != nil {
		t.Fatalf("Stats() error = %v", serr)
	}
	if st.DocumentCount != 0 {
		t.Errorf("failed ingest left %d documents behind", st.DocumentCount)
	}
	if index.Len() != 0 {
		t.Errorf("failed ingest left %d index entries", index.Len())
	}

	// Recovered provider: the same content ingests cleanly.
	emb.FailFirst = 0
	res, err := ing.Ingest(ctx, "manual", "content that cannot be embedded", nil)
	if err != nil {
		t.Fatalf("retry Ingest() error = %v", err)
	}
	if res.Reused || res.ChunksAdded == 0 {
		t.Errorf("retry result = %+v, want fresh ingestion", res)
	}
}

func TestDelete_RemovesFromStoreAndIndex(t *testing.T) {
	ing, store, index := newTestIngestor(t, testutil.NewFakeEmbedder(testDim), 16)
	ctx := context.Background()

	res, err := ing.Ingest(ctx, "manual", "content that will be deleted", nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	removed, err := ing.Delete(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != res.ChunksAdded {
		t.Errorf("Delete() removed %d chunks, ingest added %d", removed, res.ChunksAdded)
	}
	if index.Len() != 0 {
		t.Errorf("index still holds %d vectors after delete", index.Len())
	}
	if _, err := store.Get(ctx, res.DocumentID); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}

	if _, err := ing.Delete(ctx, res.DocumentID); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestIngest_PartialBatchFailure(t *testing.T) {
	emb := testutil.NewFakeEmbedder(testDim)
	// First batch exhausts its 3 attempts, second batch succeeds.
	emb.FailFirst = 3
	ing, store, index := newTestIngestor(t, emb, 2)
	ctx := context.Background()

	// Enough text for at least 4 chunks at target size 100.
	content := strings.Repeat("Sentences fill the space here nicely. ", 15)
	res, err := ing.Ingest(ctx, "manual", content, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(res.FailedChunks) != 2 {
		t.Fatalf("FailedChunks = %v, want the first batch of 2", res.FailedChunks)
	}
	if res.FailedChunks[0] != 0 || res.FailedChunks[1] != 1 {
		t.Errorf("FailedChunks = %v, want [0 1]", res.FailedChunks)
	}
	if res.ChunksAdded == 0 {
		t.Error("ChunksAdded = 0, want the surviving batches")
	}

	n, err := store.ChunkCount(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("ChunkCount() error = %v", err)
	}
	if n != res.ChunksAdded || index.Len() != res.ChunksAdded {
		t.Errorf("stored=%d indexed=%d, result says %d", n, index.Len(), res.ChunksAdded)
	}
}
