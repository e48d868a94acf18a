package cmd

import "testing"

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata([]string{"topic=go", "level=intro"})
	if err != nil {
		t.Fatalf("parseMetadata() error = %v", err)
	}
	if md["topic"] != "go" || md["level"] != "intro" {
		t.Errorf("parseMetadata() = %v", md)
	}

	if md, err := parseMetadata(nil); err != nil || md != nil {
		t.Errorf("parseMetadata(nil) = %v, %v", md, err)
	}

	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseMetadata([]string{bad}); err == nil {
			t.Errorf("parseMetadata(%q) error = nil, want error", bad)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short text", 100); got != "short text" {
		t.Errorf("preview() = %q", got)
	}
	if got := preview("multi\n  line\ttext", 100); got != "multi line text" {
		t.Errorf("preview() = %q, want whitespace collapsed", got)
	}
	long := preview("aaaaaaaaaa", 4)
	if long != "aaaa..." {
		t.Errorf("preview() = %q, want truncated with ellipsis", long)
	}
}
