package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap/zaptest"
)

type failingAPI struct {
	err   error
	input *bedrockruntime.ConverseStreamInput
}

func (f *failingAPI) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	f.input = params
	return nil, f.err
}

func TestImageFormat(t *testing.T) {
	cases := map[string]types.ImageFormat{
		"image/png":  types.ImageFormatPng,
		"image/jpeg": types.ImageFormatJpeg,
		"image/JPG":  types.ImageFormatJpeg,
		"image/webp": types.ImageFormatWebp,
		"image/gif":  types.ImageFormatGif,
	}
	for mime, want := range cases {
		got, err := imageFormat(mime)
		if err != nil || got != want {
			t.Errorf("imageFormat(%q) = %q, %v", mime, got, err)
		}
	}
	if _, err := imageFormat("image/tiff"); err == nil {
		t.Error("expected tiff to be rejected")
	}
}

func TestStreamChatBuildsConverseInput(t *testing.T) {
	api := &failingAPI{err: errors.New("access denied")}
	c := NewBedrockClient(api, "anthropic.claude-3-haiku", 256, 0.2, 0.9, zaptest.NewLogger(t))

	err := c.StreamChat(context.Background(), &core.ChatTurn{Prompt: "hi", Image: []byte{1}, ImageMIME: "image/png"}, func(string) bool { return true })
	var upstream *core.UpstreamChatError
	if !errors.As(err, &upstream) || upstream.Provider != ProviderName {
		t.Fatalf("expected UpstreamChatError, got %v", err)
	}

	if api.input == nil || *api.input.ModelId != "anthropic.claude-3-haiku" {
		t.Fatalf("unexpected input %+v", api.input)
	}
	content := api.input.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected text and image blocks, got %d", len(content))
	}
	if text, ok := content[0].(*types.ContentBlockMemberText); !ok || text.Value != "hi" {
		t.Fatalf("unexpected first block %#v", content[0])
	}
	if *api.input.InferenceConfig.MaxTokens != 256 {
		t.Fatalf("max tokens = %d", *api.input.InferenceConfig.MaxTokens)
	}
}

func TestStreamChatRejectsUnsupportedImage(t *testing.T) {
	api := &failingAPI{}
	c := NewBedrockClient(api, "m", 1, 0, 0, zaptest.NewLogger(t))
	err := c.StreamChat(context.Background(), &core.ChatTurn{Prompt: "hi", Image: []byte{1}, ImageMIME: "image/bmp"}, func(string) bool { return true })
	if err == nil || api.input != nil {
		t.Fatalf("expected rejection before calling Bedrock, err %v", err)
	}
}
