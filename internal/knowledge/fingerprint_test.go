package knowledge_test

import (
	"testing"

	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

func TestFingerprint_FormattingInsensitive(t *testing.T) {
	base := knowledge.Fingerprint("Hello World, this is content.")

	same := []string{
		"hello world, this is content.",
		"  Hello   World,\n\nthis is content.  ",
		"HELLO\tWORLD, THIS IS CONTENT.",
	}
	for _, s := range same {
		if got := knowledge.Fingerprint(s); got != base {
			t.Errorf("Fingerprint(%q) = %s, want %s", s, got, base)
		}
	}

	if knowledge.Fingerprint("different content") == base {
		t.Error("distinct content produced the same fingerprint")
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := knowledge.Fingerprint("stable input")
	b := knowledge.Fingerprint("stable input")
	if a != b {
		t.Errorf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
