package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	got := tp.TruncateText("héllo wörld", 2)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("missing truncation marker: %q", got)
	}
	if body := strings.TrimSuffix(got, TruncationMarker); body != "h" || !utf8.ValidString(got) {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := tp.TruncateText("short", 100); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
}

func TestSanitizeDropsInvalidBytesAndControls(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	got := tp.SanitizeUTF8("a\xffb\x00c\nd")
	if got != "abc\nd" {
		t.Fatalf("got %q", got)
	}
}

func TestProcessTextNormalizesToNFC(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	// "e" followed by a combining acute accent composes to "é"
	got := tp.ProcessText("  cafe\u0301  ", 0)
	if got != "caf\u00e9" {
		t.Fatalf("got %q", got)
	}
}
