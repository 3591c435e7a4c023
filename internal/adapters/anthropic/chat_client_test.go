package anthropic

import (
	"testing"

	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap/zaptest"
)

func TestParamsTextOnly(t *testing.T) {
	c := NewAnthropicClient("claude-test", 512, 0.3, zaptest.NewLogger(t))
	p := c.params(&core.ChatTurn{Prompt: "hello"})

	if string(p.Model) != "claude-test" || p.MaxTokens != 512 {
		t.Fatalf("unexpected params %+v", p)
	}
	if len(p.Messages) != 1 || len(p.Messages[0].Content) != 1 {
		t.Fatalf("expected one text block, got %+v", p.Messages)
	}
	if text := p.Messages[0].Content[0].OfText; text == nil || text.Text != "hello" {
		t.Fatalf("unexpected text block %+v", p.Messages[0].Content[0])
	}
}

func TestParamsWithImage(t *testing.T) {
	c := NewAnthropicClient("claude-test", 512, 0.3, zaptest.NewLogger(t))
	p := c.params(&core.ChatTurn{Prompt: "what is this", Image: []byte("img"), ImageMIME: "image/png"})

	content := p.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected text and image blocks, got %d", len(content))
	}
	if content[1].OfImage == nil {
		t.Fatalf("second block is not an image: %+v", content[1])
	}
}
