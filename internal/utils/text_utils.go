package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// TruncationMarker is appended to prompts cut at the size limit
const TruncationMarker = "\n[... Prompt truncated due to size limits ...]"

// TextProcessor prepares chat prompts before they are sent upstream
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Prompt truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + TruncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 bytes and control characters other than
// newlines and tabs
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return r
		case r == utf8.RuneError, r < 0x20, r == 0x7f:
			return -1
		}
		return r
	}, strings.ToValidUTF8(text, ""))

	if len(clean) != len(text) {
		tp.logger.Debug("Prompt sanitized",
			zap.Int("original_size", len(text)),
			zap.Int("sanitized_size", len(clean)))
	}
	return clean
}

// Normalize converts text to Unicode normalization form C
func (tp *TextProcessor) Normalize(text string) string {
	return norm.NFC.String(text)
}

// ProcessText sanitizes, normalizes, trims and truncates a prompt in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	text = tp.Normalize(tp.SanitizeUTF8(text))
	return tp.TruncateText(strings.TrimSpace(text), maxSize)
}
