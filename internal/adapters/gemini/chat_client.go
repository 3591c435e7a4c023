package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ProviderName identifies Gemini in errors and logs
const ProviderName = "gemini"

// GeminiClient is an implementation of the ChatClient interface using Google Gemini
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	model.ResponseMIMEType = "text/plain"

	return &GeminiClient{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// StreamChat streams the completion of a chat turn fragment by fragment
func (c *GeminiClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	it := c.model.GenerateContentStream(ctx, partsFor(turn)...)

	chunks := 0
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return &core.UpstreamChatError{Provider: ProviderName, Err: err}
		}
		chunks++
		if text := textOf(resp); text != "" && !yield(text) {
			c.logger.Debug("Chat consumer stopped early", zap.Int("chunks", chunks))
			return nil
		}
	}

	c.logger.Debug("Chat stream complete",
		zap.String("model", c.modelName),
		zap.Int("chunks", chunks))
	return nil
}

// partsFor builds the request parts: the prompt first, then the optional image
func partsFor(turn *core.ChatTurn) []genai.Part {
	parts := []genai.Part{genai.Text(turn.Prompt)}
	if len(turn.Image) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: turn.ImageMIME, Data: turn.Image})
	}
	return parts
}

// textOf concatenates the text parts of the first candidate
func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
