// Package testutil provides hand-written mocks of the core ports for tests.
package testutil

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/mikey/teethanalyzer/internal/core"
)

// MockClassifier is a mock implementation of core.Classifier
type MockClassifier struct {
	NameValue   string
	LabelsValue []string
	LoadFunc    func(ctx context.Context) error
	PredictFunc func(ctx context.Context, images [][]byte) (*core.ClassificationResult, error)

	mu           sync.Mutex
	LoadCalls    int
	PredictCalls int
}

// Name implements core.Loadable
func (m *MockClassifier) Name() string { return m.NameValue }

// Labels implements core.Classifier
func (m *MockClassifier) Labels() []string { return m.LabelsValue }

// Load implements core.Loadable
func (m *MockClassifier) Load(ctx context.Context) error {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil
}

// Predict implements core.Classifier
func (m *MockClassifier) Predict(ctx context.Context, images [][]byte) (*core.ClassificationResult, error) {
	m.mu.Lock()
	m.PredictCalls++
	m.mu.Unlock()
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, images)
	}
	return &core.ClassificationResult{Label: "Calculus", Confidence: 1, AllScores: map[string]float64{"Calculus": 1}}, nil
}

// CallCounts returns the number of Load and Predict calls
func (m *MockClassifier) CallCounts() (load, predict int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LoadCalls, m.PredictCalls
}

// MockGate is a mock implementation of core.AnomalyGate
type MockGate struct {
	LoadFunc     func(ctx context.Context) error
	ValidateFunc func(ctx context.Context, image []byte) (*core.AnomalyVerdict, error)

	mu            sync.Mutex
	ValidateCalls int
}

// Name implements core.Loadable
func (m *MockGate) Name() string { return core.ModelAutoencoder }

// Load implements core.Loadable
func (m *MockGate) Load(ctx context.Context) error {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil
}

// Validate implements core.AnomalyGate
func (m *MockGate) Validate(ctx context.Context, image []byte) (*core.AnomalyVerdict, error) {
	m.mu.Lock()
	m.ValidateCalls++
	m.mu.Unlock()
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, image)
	}
	return &core.AnomalyVerdict{Threshold: 0.05, Confidence: 0.99}, nil
}

// MockExplainer is a mock implementation of core.Explainer
type MockExplainer struct {
	ExplainFunc func(ctx context.Context, image []byte, target int, label string, numSamples int) (*core.ExplanationArtifact, error)

	mu           sync.Mutex
	ExplainCalls int
}

// Explain implements core.Explainer
func (m *MockExplainer) Explain(ctx context.Context, image []byte, target int, label string, numSamples int) (*core.ExplanationArtifact, error) {
	m.mu.Lock()
	m.ExplainCalls++
	m.mu.Unlock()
	if m.ExplainFunc != nil {
		return m.ExplainFunc(ctx, image, target, label, numSamples)
	}
	return &core.ExplanationArtifact{
		Image:      []byte("png"),
		NumSamples: numSamples,
		Statistics: core.ExplanationStatistics{Disease: label, AssessmentLabel: "Weak/Mixed Evidence"},
	}, nil
}

// Calls returns the number of Explain calls
func (m *MockExplainer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExplainCalls
}

// MockProbabilityModel is a mock implementation of core.ProbabilityModel
type MockProbabilityModel struct {
	Size              int
	ProbabilitiesFunc func(ctx context.Context, images []image.Image) ([][]float64, error)

	mu     sync.Mutex
	Calls  int
	Images int
}

// InputSize implements core.ProbabilityModel
func (m *MockProbabilityModel) InputSize() int { return m.Size }

// Probabilities implements core.ProbabilityModel
func (m *MockProbabilityModel) Probabilities(ctx context.Context, images []image.Image) ([][]float64, error) {
	m.mu.Lock()
	m.Calls++
	m.Images += len(images)
	m.mu.Unlock()
	return m.ProbabilitiesFunc(ctx, images)
}

// MockChatClient is a mock implementation of core.ChatClient
type MockChatClient struct {
	Fragments []string
	Err       error

	mu        sync.Mutex
	Calls     int
	LastTurn  *core.ChatTurn
	Delivered int
}

// StreamChat implements core.ChatClient by emitting Fragments then returning Err
func (m *MockChatClient) StreamChat(ctx context.Context, turn *core.ChatTurn, yield func(string) bool) error {
	m.mu.Lock()
	m.Calls++
	m.LastTurn = turn
	m.mu.Unlock()

	for _, f := range m.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.mu.Lock()
		m.Delivered++
		m.mu.Unlock()
		if !yield(f) {
			return nil
		}
	}
	return m.Err
}

// ErrCacheMiss is returned by MockCache.Get for unknown keys
var ErrCacheMiss = errors.New("cache entry not found")

// MockCache is a map backed core.CacheRepository
type MockCache struct {
	mu      sync.Mutex
	Entries map[string]*core.CacheEntry
	Gets    int
	Sets    int
}

// NewMockCache creates an empty mock cache
func NewMockCache() *MockCache {
	return &MockCache{Entries: make(map[string]*core.CacheEntry)}
}

// Get implements core.CacheRepository
func (m *MockCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	e, ok := m.Entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return e, nil
}

// Set implements core.CacheRepository
func (m *MockCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	m.Entries[entry.Key] = entry
	return nil
}

// Delete implements core.CacheRepository
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, key)
	return nil
}

// Cleanup implements core.CacheRepository
func (m *MockCache) Cleanup(ctx context.Context) error { return nil }
