package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Sample count bounds for explanations
const (
	MinExplanationSamples     = 100
	MaxExplanationSamples     = 1000
	DefaultExplanationSamples = 300
)

// ValidateSampleCount rejects explanation sample counts outside the accepted range
func ValidateSampleCount(n int) error {
	if n < MinExplanationSamples || n > MaxExplanationSamples {
		return &ValidationError{
			Field:   "num_samples",
			Message: fmt.Sprintf("must be between %d and %d, got %d", MinExplanationSamples, MaxExplanationSamples, n),
		}
	}
	return nil
}

// ServiceOptions tunes the diagnosis service
type ServiceOptions struct {
	CacheEnabled     bool
	CacheTTL         time.Duration
	InferenceWorkers int
	ExplainWorkers   int
}

// DiagnosisService is the core service for dental image diagnosis
type DiagnosisService struct {
	registry  *ModelRegistry
	neural    Classifier
	hybrid    Classifier
	gate      AnomalyGate
	explainer Explainer
	cache     CacheRepository
	logger    *zap.Logger

	cacheEnabled  bool
	cacheTTL      time.Duration
	inferencePool *semaphore.Weighted
	explainPool   *semaphore.Weighted
}

// NewDiagnosisService creates a new diagnosis service
func NewDiagnosisService(
	registry *ModelRegistry,
	neural Classifier,
	hybrid Classifier,
	gate AnomalyGate,
	explainer Explainer,
	cache CacheRepository,
	logger *zap.Logger,
	opts ServiceOptions,
) *DiagnosisService {
	if opts.InferenceWorkers < 1 {
		opts.InferenceWorkers = 1
	}
	if opts.ExplainWorkers < 1 {
		opts.ExplainWorkers = 1
	}
	return &DiagnosisService{
		registry:      registry,
		neural:        neural,
		hybrid:        hybrid,
		gate:          gate,
		explainer:     explainer,
		cache:         cache,
		logger:        logger,
		cacheEnabled:  opts.CacheEnabled && cache != nil,
		cacheTTL:      opts.CacheTTL,
		inferencePool: semaphore.NewWeighted(int64(opts.InferenceWorkers)),
		explainPool:   semaphore.NewWeighted(int64(opts.ExplainWorkers)),
	}
}

// PredictDisease classifies one or more images with the neural classifier
func (s *DiagnosisService) PredictDisease(ctx context.Context, images [][]byte) (*ClassificationResult, error) {
	if len(images) == 0 {
		return nil, &ValidationError{Field: "file", Message: "at least one image is required"}
	}
	if err := s.registry.Ensure(ctx, ModelNeural); err != nil {
		return nil, err
	}

	var result *ClassificationResult
	err := s.withPool(ctx, s.inferencePool, func() error {
		var err error
		result, err = s.neural.Predict(ctx, images)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Neural prediction",
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Int("images", len(images)))
	return result, nil
}

// PredictFast classifies a single image with the hybrid classifier
func (s *DiagnosisService) PredictFast(ctx context.Context, image []byte) (*ClassificationResult, error) {
	if len(image) == 0 {
		return nil, &ValidationError{Field: "file", Message: "image is empty"}
	}
	if err := s.registry.Ensure(ctx, ModelHybrid); err != nil {
		return nil, err
	}

	key := cacheKey(image, "predict-fast")
	var cached ClassificationResult
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	var result *ClassificationResult
	err := s.withPool(ctx, s.inferencePool, func() error {
		var err error
		result, err = s.hybrid.Predict(ctx, [][]byte{image})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, "predict-fast", result)
	return result, nil
}

// ValidateImage runs the anomaly gate on a single image
func (s *DiagnosisService) ValidateImage(ctx context.Context, image []byte) (*AnomalyVerdict, error) {
	if len(image) == 0 {
		return nil, &ValidationError{Field: "file", Message: "image is empty"}
	}
	if err := s.registry.Ensure(ctx, ModelAutoencoder); err != nil {
		return nil, err
	}

	var verdict *AnomalyVerdict
	err := s.withPool(ctx, s.inferencePool, func() error {
		var err error
		verdict, err = s.gate.Validate(ctx, image)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Anomaly verdict",
		zap.Float64("reconstruction_error", verdict.ReconstructionError),
		zap.Bool("anomalous", verdict.IsAnomalous))
	return verdict, nil
}

// Explain predicts the image with the hybrid classifier and explains the predicted class.
// The sample count is validated before any inference runs.
func (s *DiagnosisService) Explain(ctx context.Context, image []byte, numSamples int) (*Diagnosis, error) {
	if err := ValidateSampleCount(numSamples); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, &ValidationError{Field: "file", Message: "image is empty"}
	}
	if err := s.registry.Ensure(ctx, ModelHybrid); err != nil {
		return nil, err
	}

	key := cacheKey(image, fmt.Sprintf("explain:%d", numSamples))
	var cached Diagnosis
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	prediction, err := s.PredictFast(ctx, image)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var artifact *ExplanationArtifact
	err = s.withPool(ctx, s.explainPool, func() error {
		var err error
		artifact, err = s.explainer.Explain(ctx, image, prediction.ClassIndex, prediction.Label, numSamples)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Explanation generated",
		zap.String("label", prediction.Label),
		zap.Int("num_samples", numSamples),
		zap.String("assessment", artifact.Statistics.AssessmentLabel),
		zap.Duration("duration", time.Since(start)))

	diagnosis := &Diagnosis{Prediction: prediction, Explanation: artifact}
	s.store(ctx, key, "explain", diagnosis)
	return diagnosis, nil
}

// Health reports the status of a model without waiting for it to load. A model that
// has not started loading yet is loaded in the background.
func (s *DiagnosisService) Health(ctx context.Context, name string) ModelStatus {
	s.registry.Start(name)
	status := s.registry.Status(name)
	if !status.Available {
		return status
	}
	switch name {
	case ModelNeural:
		status.Labels = s.neural.Labels()
	case ModelHybrid:
		status.Labels = s.hybrid.Labels()
	}
	return status
}

// withPool runs fn while holding one slot of the pool
func (s *DiagnosisService) withPool(ctx context.Context, pool *semaphore.Weighted, fn func() error) error {
	if err := pool.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire worker: %w", err)
	}
	defer pool.Release(1)
	return fn()
}

func (s *DiagnosisService) lookup(ctx context.Context, key string, out any) bool {
	if !s.cacheEnabled {
		return false
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		s.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	s.logger.Debug("Cache hit", zap.String("key", key))
	return true
}

func (s *DiagnosisService) store(ctx context.Context, key, kind string, value any) {
	if !s.cacheEnabled {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to encode cache entry", zap.Error(err))
		return
	}
	now := time.Now()
	entry := &CacheEntry{
		Key:       key,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}
}

func cacheKey(image []byte, kind string) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:]) + ":" + kind
}
