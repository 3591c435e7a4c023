package core

import (
	"context"
	"image"
)

// Loadable is a model whose weights are loaded once before first use
type Loadable interface {
	// Name returns the registry name of the model
	Name() string

	// Load prepares the model for inference
	Load(ctx context.Context) error
}

// Classifier turns one or more encoded images into a single classification.
// Batches are averaged per class before the arg-max.
type Classifier interface {
	Loadable

	// Labels returns the ordered class labels
	Labels() []string

	// Predict classifies the encoded images
	Predict(ctx context.Context, images [][]byte) (*ClassificationResult, error)
}

// ProbabilityModel exposes raw class probabilities for already decoded images
type ProbabilityModel interface {
	// InputSize returns the square side length the model expects
	InputSize() int

	// Probabilities returns one probability row per image
	Probabilities(ctx context.Context, images []image.Image) ([][]float64, error)
}

// AnomalyGate decides whether an image looks like an intra-oral photograph
type AnomalyGate interface {
	Loadable

	// Validate scores a single encoded image
	Validate(ctx context.Context, image []byte) (*AnomalyVerdict, error)
}

// Explainer produces a visual explanation of a prediction
type Explainer interface {
	// Explain attributes the probability of target to regions of the image
	Explain(ctx context.Context, image []byte, target int, label string, numSamples int) (*ExplanationArtifact, error)
}

// ChatClient streams a completion for a chat turn. yield returns false when the
// consumer wants no more fragments.
type ChatClient interface {
	StreamChat(ctx context.Context, turn *ChatTurn, yield func(fragment string) bool) error
}

// CacheRepository defines the interface for caching serialised results
type CacheRepository interface {
	// Get retrieves a cached entry
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
