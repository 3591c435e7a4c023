package anthropic

import (
	"context"
	"encoding/base64"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

// ProviderName identifies Anthropic in errors and logs
const ProviderName = "anthropic"

// AnthropicClient is an implementation of the ChatClient interface using the Anthropic Messages API
type AnthropicClient struct {
	client      anthropic.Client
	modelName   string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(
	modelName string,
	maxTokens int,
	temperature float64,
	logger *zap.Logger,
	opts ...option.RequestOption,
) *AnthropicClient {
	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		modelName:   modelName,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
		logger:      logger,
	}
}

// StreamChat streams the completion of a chat turn fragment by fragment
func (c *AnthropicClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	stream := c.client.Messages.NewStreaming(ctx, c.params(turn))
	defer stream.Close()

	chunks := 0
	for stream.Next() {
		delta, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || text.Text == "" {
			continue
		}
		chunks++
		if !yield(text.Text) {
			c.logger.Debug("Chat consumer stopped early", zap.Int("chunks", chunks))
			return nil
		}
	}
	if err := stream.Err(); err != nil {
		return &core.UpstreamChatError{Provider: ProviderName, Err: err}
	}

	c.logger.Debug("Chat stream complete",
		zap.String("model", c.modelName),
		zap.Int("chunks", chunks))
	return nil
}

func (c *AnthropicClient) params(turn *core.ChatTurn) anthropic.MessageNewParams {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.Prompt)}
	if len(turn.Image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(turn.ImageMIME, base64.StdEncoding.EncodeToString(turn.Image)))
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
}
