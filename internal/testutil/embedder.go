// Package testutil provides hand-written fakes shared across test packages.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
)

// ErrEmbedderDown is returned by FakeEmbedder when failures are injected.
var ErrEmbedderDown = errors.New("embedder unavailable")

// FakeEmbedder produces deterministic vectors derived from the input text,
// so equal texts always embed identically and tests never need a network.
// FailFirst injects that many failing calls before it starts succeeding.
type FakeEmbedder struct {
	Dim       int
	FailFirst int

	mu    sync.Mutex
	calls int
}

// NewFakeEmbedder creates a fake producing vectors of the given dimension.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dim}
}

// Embed returns one deterministic vector per input text.
func (f *FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.FailFirst
	f.mu.Unlock()

	if fail {
		return nil, ErrEmbedderDown
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

// Calls returns how many times Embed has been invoked.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// vector expands the text's sha256 into Dim pseudo-random components in
// [-1, 1).
func (f *FakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.Dim)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for i := range v {
		if i%8 == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.LittleEndian.Uint32(block[(i%8)*4:])
		v[i] = float32(int32(bits)) / float32(1<<31)
	}
	return v
}
