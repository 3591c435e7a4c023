package gemini

import (
	"github.com/mikey/teethanalyzer/internal/config"
	"go.uber.org/zap"
)

// Factory creates new instances of GeminiClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for GeminiClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new GeminiClient
func (f *Factory) CreateClient() (*GeminiClient, error) {
	gc := f.cfg.GetGemini()
	return NewGeminiClient(
		gc.APIKey,
		gc.ModelName,
		gc.MaxTokens,
		gc.Temperature,
		gc.TopP,
		f.logger.With(zap.String("provider", ProviderName)),
	)
}
