package config

import (
	"time"
)

// ServerConfig represents the configuration of the frontend
type ServerConfig struct {
	Frontend        string
	ListenAddress   string
	MaxUploadBytes  int64
	MaxImagePixels  int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxPromptSize   int
	AllowedOrigins  []string
}

// WorkersConfig sizes the inference worker pools
type WorkersConfig struct {
	Inference int
	Explain   int
}

// ServingConfig represents the model server connection
type ServingConfig struct {
	URL     string
	Timeout time.Duration
	Preload bool
}

// NeuralConfig represents the configuration of the CNN classifier
type NeuralConfig struct {
	Name         string
	Signature    string
	ImageSize    int
	ApplySoftmax bool
	Classes      []string
}

// HybridConfig represents the configuration of the CNN + LightGBM classifier
type HybridConfig struct {
	Name              string
	Signature         string
	FeaturesSignature string
	ImageSize         int
	ApplySoftmax      bool
	LightGBMPath      string
	MetadataPath      string
}

// AutoencoderConfig represents the configuration of the anomaly gate
type AutoencoderConfig struct {
	Name      string
	Signature string
	ImageSize int
	Threshold float64
}

// ExplainConfig represents the configuration of the explanation engine
type ExplainConfig struct {
	Segments       int
	Compactness    float64
	Sigma          float64
	Seed           uint64
	KernelWidth    float64
	Alpha          float64
	DefaultSamples int
	BatchSize      int
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// AnthropicConfig represents the configuration for Anthropic
type AnthropicConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float64
}

// CacheConfig represents the configuration of the result cache
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	MaxEntries       int
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Frontend:        c.GetString("server.frontend"),
		ListenAddress:   c.GetString("server.listen_address"),
		MaxUploadBytes:  c.GetInt64("server.max_upload_bytes"),
		MaxImagePixels:  c.GetInt("server.max_image_pixels"),
		RequestTimeout:  c.durationOr("server.request_timeout", 180*time.Second),
		ShutdownTimeout: c.durationOr("server.shutdown_timeout", 15*time.Second),
		MaxPromptSize:   c.GetInt("server.max_prompt_size"),
		AllowedOrigins:  c.GetStringSlice("server.cors.allowed_origins"),
	}
}

// GetWorkers returns the worker pool configuration
func (c *Config) GetWorkers() WorkersConfig {
	return WorkersConfig{
		Inference: c.GetInt("workers.inference"),
		Explain:   c.GetInt("workers.explain"),
	}
}

// GetServing returns the model server configuration
func (c *Config) GetServing() ServingConfig {
	return ServingConfig{
		URL:     c.GetString("models.serving_url"),
		Timeout: c.durationOr("models.timeout", 60*time.Second),
		Preload: c.GetBool("models.preload"),
	}
}

// GetNeural returns the CNN classifier configuration
func (c *Config) GetNeural() NeuralConfig {
	return NeuralConfig{
		Name:         c.GetString("models.neural.name"),
		Signature:    c.GetString("models.neural.signature"),
		ImageSize:    c.GetInt("models.neural.image_size"),
		ApplySoftmax: c.GetBool("models.neural.apply_softmax"),
		Classes:      c.GetStringSlice("models.neural.classes"),
	}
}

// GetHybrid returns the hybrid classifier configuration
func (c *Config) GetHybrid() HybridConfig {
	return HybridConfig{
		Name:              c.GetString("models.hybrid.name"),
		Signature:         c.GetString("models.hybrid.signature"),
		FeaturesSignature: c.GetString("models.hybrid.features_signature"),
		ImageSize:         c.GetInt("models.hybrid.image_size"),
		ApplySoftmax:      c.GetBool("models.hybrid.apply_softmax"),
		LightGBMPath:      c.GetString("models.hybrid.lightgbm_path"),
		MetadataPath:      c.GetString("models.hybrid.metadata_path"),
	}
}

// GetAutoencoder returns the anomaly gate configuration
func (c *Config) GetAutoencoder() AutoencoderConfig {
	return AutoencoderConfig{
		Name:      c.GetString("models.autoencoder.name"),
		Signature: c.GetString("models.autoencoder.signature"),
		ImageSize: c.GetInt("models.autoencoder.image_size"),
		Threshold: c.GetFloat64("models.autoencoder.threshold"),
	}
}

// GetExplain returns the explanation engine configuration
func (c *Config) GetExplain() ExplainConfig {
	return ExplainConfig{
		Segments:       c.GetInt("explain.segments"),
		Compactness:    c.GetFloat64("explain.compactness"),
		Sigma:          c.GetFloat64("explain.sigma"),
		Seed:           c.v.GetUint64("explain.seed"),
		KernelWidth:    c.GetFloat64("explain.kernel_width"),
		Alpha:          c.GetFloat64("explain.alpha"),
		DefaultSamples: c.GetInt("explain.default_samples"),
		BatchSize:      c.GetInt("explain.batch_size"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetAnthropic returns the Anthropic configuration
func (c *Config) GetAnthropic() AnthropicConfig {
	return AnthropicConfig{
		APIKey:      c.GetString("anthropic.api_key"),
		ModelName:   c.GetString("anthropic.model_name"),
		MaxTokens:   c.GetInt("anthropic.max_tokens"),
		Temperature: c.GetFloat64("anthropic.temperature"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.durationOr("cache.ttl", time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", 10*time.Minute),
		MaxEntries:       c.GetInt("cache.max_entries"),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		PostgresDSN:      c.GetString("cache.postgres_dsn"),
	}
}

// GetLogging returns the logger configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// durationOr parses a duration key, falling back when it is malformed
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}
