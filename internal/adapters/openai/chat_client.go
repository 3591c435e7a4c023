package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ProviderName identifies OpenAI in errors and logs
const ProviderName = "openai"

// OpenAIClient is an implementation of the ChatClient interface using OpenAI
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// StreamChat streams the completion of a chat turn fragment by fragment
func (c *OpenAIClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(turn))
	if err != nil {
		return &core.UpstreamChatError{Provider: ProviderName, Err: fmt.Errorf("failed to open stream: %w", err)}
	}
	defer stream.Close()

	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &core.UpstreamChatError{Provider: ProviderName, Err: err}
		}
		chunks++
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" && !yield(text) {
			c.logger.Debug("Chat consumer stopped early", zap.Int("chunks", chunks))
			return nil
		}
	}

	c.logger.Debug("Chat stream complete",
		zap.String("model", c.modelName),
		zap.Int("chunks", chunks))
	return nil
}

func (c *OpenAIClient) request(turn *core.ChatTurn) openai.ChatCompletionRequest {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(turn.Image) == 0 {
		msg.Content = turn.Prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: turn.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    imaging.DataURL(turn.Image, turn.ImageMIME),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	}

	return openai.ChatCompletionRequest{
		Model:       c.modelName,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		Stream:      true,
		Messages:    []openai.ChatCompletionMessage{msg},
	}
}
