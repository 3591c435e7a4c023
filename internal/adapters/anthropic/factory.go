package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mikey/teethanalyzer/internal/config"
	"go.uber.org/zap"
)

// Factory creates new instances of AnthropicClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for AnthropicClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new AnthropicClient
func (f *Factory) CreateClient() *AnthropicClient {
	ac := f.cfg.GetAnthropic()
	return NewAnthropicClient(
		ac.ModelName,
		ac.MaxTokens,
		ac.Temperature,
		f.logger.With(zap.String("provider", ProviderName)),
		option.WithAPIKey(ac.APIKey),
	)
}
