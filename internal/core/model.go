package core

import (
	"time"
)

// Model names used by the registry and the health endpoints
const (
	ModelNeural      = "neural"
	ModelHybrid      = "hybrid"
	ModelAutoencoder = "autoencoder"
)

// Source identifies which classifier produced a result
type Source string

const (
	SourceNeural Source = "neural"
	SourceHybrid Source = "hybrid"
)

// ClassificationResult represents the outcome of classifying one image or a batch
type ClassificationResult struct {
	Label      string             `json:"label"`
	ClassIndex int                `json:"class_index"`
	Confidence float64            `json:"confidence"`
	AllScores  map[string]float64 `json:"all_scores"`
	Source     Source             `json:"source"`

	// Populated by the hybrid classifier only. The CNN head is a lower-trust
	// signal reported next to the boosted-tree decision.
	CNNLabel      string  `json:"cnn_label,omitempty"`
	CNNConfidence float64 `json:"cnn_confidence,omitempty"`

	ModelUsed   string    `json:"model_used"`
	ImageCount  int       `json:"image_count"`
	PredictedAt time.Time `json:"predicted_at"`
}

// AnomalyVerdict represents the autoencoder's judgement of an input image.
// Confidence is a distance heuristic, not a calibrated probability.
type AnomalyVerdict struct {
	ReconstructionError float64 `json:"reconstruction_error"`
	Threshold           float64 `json:"threshold"`
	IsAnomalous         bool    `json:"is_anomalous"`
	Confidence          float64 `json:"confidence"`
}

// SegmentWeight is the signed importance of one superpixel for a target class
type SegmentWeight struct {
	Segment int     `json:"segment"`
	Weight  float64 `json:"weight"`
}

// SegmentImportance maps every segment of one explanation to its weight
type SegmentImportance struct {
	Target  int             `json:"target"`
	Weights []SegmentWeight `json:"weights"`
}

// ExplanationStatistics summarises the evidence behind an explanation
type ExplanationStatistics struct {
	Disease         string  `json:"disease"`
	TotalRegions    int     `json:"total_regions"`
	SupportCount    int     `json:"support_count"`
	AgainstCount    int     `json:"against_count"`
	MeanSupport     float64 `json:"mean_support"`
	MaxSupport      float64 `json:"max_support"`
	TotalSupport    float64 `json:"total_support"`
	MeanAgainst     float64 `json:"mean_against"`
	MaxAgainst      float64 `json:"max_against"`
	TotalAgainst    float64 `json:"total_against"`
	NetSupport      float64 `json:"net_support"`
	AssessmentLabel string  `json:"assessment_label"`
	Intercept       float64 `json:"intercept"`
	SurrogateScore  float64 `json:"surrogate_score"`
}

// ExplanationArtifact is the rendered explanation plus its statistics
type ExplanationArtifact struct {
	Image      []byte                `json:"image"`
	Statistics ExplanationStatistics `json:"statistics"`
	Importance SegmentImportance     `json:"importance"`
	NumSamples int                   `json:"num_samples"`
}

// Diagnosis pairs a hybrid prediction with the explanation of its class
type Diagnosis struct {
	Prediction  *ClassificationResult `json:"prediction"`
	Explanation *ExplanationArtifact  `json:"explanation"`
}

// ChatTurn is a single prompt sent to the chat relay
type ChatTurn struct {
	Prompt    string
	Image     []byte
	ImageMIME string
}

// ModelStatus reports whether a registered model is usable
type ModelStatus struct {
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Error     string   `json:"error,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// CacheEntry is a cached, serialised result keyed by image digest and request kind
type CacheEntry struct {
	Key       string
	Kind      string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
