package api

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSnippetKeepsRuneBoundaries(t *testing.T) {
	body := strings.Repeat("a", maxSnippet-1) + strings.Repeat("é", 10)
	got := snippet([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-8:])
	}
	if len(got) > maxSnippet+len("...") {
		t.Fatalf("snippet too long: %d bytes", len(got))
	}

	short := "  not found  "
	if got := snippet([]byte(short)); got != "not found" {
		t.Fatalf("unexpected short snippet %q", got)
	}
}
