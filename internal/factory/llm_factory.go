package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/teethanalyzer/internal/adapters/anthropic"
	"github.com/mikey/teethanalyzer/internal/adapters/bedrock"
	"github.com/mikey/teethanalyzer/internal/adapters/gemini"
	"github.com/mikey/teethanalyzer/internal/adapters/openai"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates chat clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateChatClient creates a chat client based on the configuration. A provider
// without credentials yields a client that fails every stream, so the image
// endpoints keep working.
func (f *LLMFactory) CreateChatClient() (core.ChatClient, error) {
	provider := f.cfg.GetLLM().Provider

	switch provider {
	case gemini.ProviderName:
		if f.cfg.GetGemini().APIKey == "" {
			return f.disabled(provider, "GEMINI_API_KEY is not set"), nil
		}
		return gemini.NewFactory(f.cfg, f.logger).CreateClient()
	case openai.ProviderName:
		if f.cfg.GetOpenAI().APIKey == "" {
			return f.disabled(provider, "OPENAI_API_KEY is not set"), nil
		}
		return openai.NewFactory(f.cfg, f.logger).CreateClient(), nil
	case anthropic.ProviderName:
		if f.cfg.GetAnthropic().APIKey == "" {
			return f.disabled(provider, "ANTHROPIC_API_KEY is not set"), nil
		}
		return anthropic.NewFactory(f.cfg, f.logger).CreateClient(), nil
	case bedrock.ProviderName:
		return bedrock.NewFactory(f.cfg, f.logger).CreateClient()
	case "none":
		return &disabledChatClient{provider: provider, err: errors.New("chat is disabled")}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func (f *LLMFactory) disabled(provider, reason string) core.ChatClient {
	f.logger.Warn("Chat relay disabled", zap.String("provider", provider), zap.String("reason", reason))
	return &disabledChatClient{provider: provider, err: errors.New(reason)}
}

// disabledChatClient fails every chat turn with the reason it was disabled
type disabledChatClient struct {
	provider string
	err      error
}

func (c *disabledChatClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	return &core.UpstreamChatError{Provider: c.provider, Err: c.err}
}
