package openai

import (
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAIClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new OpenAIClient
func (f *Factory) CreateClient() *OpenAIClient {
	oc := f.cfg.GetOpenAI()
	return NewOpenAIClient(
		openai.NewClient(oc.APIKey),
		oc.ModelName,
		oc.MaxTokens,
		oc.Temperature,
		oc.TopP,
		f.logger.With(zap.String("provider", ProviderName)),
	)
}
