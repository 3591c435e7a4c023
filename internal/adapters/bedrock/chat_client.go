package bedrock

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

// ProviderName identifies Bedrock in errors and logs
const ProviderName = "bedrock"

// ConverseStreamAPI is the part of the Bedrock runtime client used for chat
type ConverseStreamAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockClient is an implementation of the ChatClient interface using Amazon Bedrock
type BedrockClient struct {
	client      ConverseStreamAPI
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client ConverseStreamAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// StreamChat streams the completion of a chat turn with the Converse API
func (c *BedrockClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	input, err := c.input(turn)
	if err != nil {
		return &core.UpstreamChatError{Provider: ProviderName, Err: err}
	}

	out, err := c.client.ConverseStream(ctx, input)
	if err != nil {
		return &core.UpstreamChatError{Provider: ProviderName, Err: fmt.Errorf("failed to open stream: %w", err)}
	}
	stream := out.GetStream()
	defer stream.Close()

	chunks := 0
	for event := range stream.Events() {
		delta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		text, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText)
		if !ok || text.Value == "" {
			continue
		}
		chunks++
		if !yield(text.Value) {
			c.logger.Debug("Chat consumer stopped early", zap.Int("chunks", chunks))
			return nil
		}
	}
	if err := stream.Err(); err != nil {
		return &core.UpstreamChatError{Provider: ProviderName, Err: err}
	}

	c.logger.Debug("Chat stream complete",
		zap.String("model", c.modelID),
		zap.Int("chunks", chunks))
	return nil
}

func (c *BedrockClient) input(turn *core.ChatTurn) (*bedrockruntime.ConverseStreamInput, error) {
	content := []types.ContentBlock{&types.ContentBlockMemberText{Value: turn.Prompt}}
	if len(turn.Image) > 0 {
		format, err := imageFormat(turn.ImageMIME)
		if err != nil {
			return nil, err
		}
		content = append(content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: format,
			Source: &types.ImageSourceMemberBytes{Value: turn.Image},
		}})
	}

	return &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: content,
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(c.maxTokens)),
			Temperature: aws.Float32(c.temperature),
			TopP:        aws.Float32(c.topP),
		},
	}, nil
}

// imageFormat maps a MIME type onto the formats the Converse API accepts
func imageFormat(mime string) (types.ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(mime, "image/")) {
	case "png":
		return types.ImageFormatPng, nil
	case "jpeg", "jpg":
		return types.ImageFormatJpeg, nil
	case "gif":
		return types.ImageFormatGif, nil
	case "webp":
		return types.ImageFormatWebp, nil
	default:
		return "", fmt.Errorf("unsupported image type %q", mime)
	}
}
