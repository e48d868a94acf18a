package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits text into overlapping pieces sized for embedding. Cuts
// prefer paragraph breaks, then sentence ends, then a fixed window, so
// chunks tend to be self-contained prose.
type Chunker struct {
	targetSize int
	overlap    int
}

// Default chunker tuning. Roughly 300 tokens per chunk with enough overlap
// that a sentence straddling a cut appears whole in one of its chunks.
const (
	DefaultChunkTargetSize = 1200
	DefaultChunkOverlap    = 150
)

// NewChunker creates a chunker. Non-positive targetSize falls back to the
// default; overlap is clamped below targetSize.
func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = DefaultChunkTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 4
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

// Split breaks text into chunks of roughly targetSize bytes. Consecutive
// chunks overlap by the configured amount. Chunks are trimmed; empty or
// whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// searchLimit bounds how far past targetSize a boundary may be.
	searchLimit := c.targetSize + c.targetSize/2

	var chunks []string
	start := 0
	for start < len(text) {
		remaining := len(text) - start
		if remaining <= searchLimit {
			if piece := strings.TrimSpace(text[start:]); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		cut := c.findCut(text[start : start+searchLimit])
		if piece := strings.TrimSpace(text[start : start+cut]); piece != "" {
			chunks = append(chunks, piece)
		}

		next := start + cut - c.overlap
		if next <= start {
			next = start + cut
		}
		// The overlap offset may land inside a multi-byte rune.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// findCut picks a cut position in window, preferring a paragraph break at
// or after targetSize, then a sentence end, then the first rune boundary
// at or after targetSize. Cuts never split a multi-byte rune.
func (c *Chunker) findCut(window string) int {
	base := c.targetSize
	for base < len(window) && !utf8.RuneStart(window[base]) {
		base++
	}
	if i := strings.Index(window[base:], "\n\n"); i >= 0 {
		return base + i + 2
	}
	if i := firstSentenceEnd(window[base:]); i >= 0 {
		return base + i
	}
	return base
}

// firstSentenceEnd returns the position just past the first sentence
// terminator in s, or -1. ASCII terminators need a trailing space to avoid
// cutting inside abbreviations and version numbers; fullwidth terminators
// end a sentence on their own.
func firstSentenceEnd(s string) int {
	for i, r := range s {
		switch r {
		case '\n':
			return i + 1
		case '。', '！', '？':
			return i + utf8.RuneLen(r)
		case '.', '!', '?':
			if i+1 < len(s) && s[i+1] == ' ' {
				return i + 2
			}
		}
	}
	return -1
}
