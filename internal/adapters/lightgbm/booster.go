// Package lightgbm runs the gradient boosted tree head of the hybrid classifier.
package lightgbm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitryikh/leaves"
)

// Metadata describes the class order and feature layout of a trained hybrid model
type Metadata struct {
	LabelEncoderClasses []string `json:"label_encoder_classes"`
	DiseaseClasses      []string `json:"disease_classes"`
	FeatureDim          int      `json:"feature_dim"`
	ImageSize           int      `json:"image_size"`
}

// Classes returns the class labels in prediction order
func (m *Metadata) Classes() []string {
	if len(m.LabelEncoderClasses) > 0 {
		return m.LabelEncoderClasses
	}
	return m.DiseaseClasses
}

// LoadMetadata reads the metadata.json written next to the trained model
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(m.Classes()) == 0 {
		return nil, fmt.Errorf("metadata %s lists no classes", path)
	}
	return &m, nil
}

// Booster wraps a LightGBM multiclass model
type Booster struct {
	ensemble *leaves.Ensemble
}

// LoadBooster loads a LightGBM text model with its softmax transformation
func LoadBooster(path string) (*Booster, error) {
	ensemble, err := leaves.LGEnsembleFromFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load LightGBM model: %w", err)
	}
	return &Booster{ensemble: ensemble}, nil
}

// NumClasses returns the number of probabilities produced per row
func (b *Booster) NumClasses() int {
	return b.ensemble.NOutputGroups()
}

// NumFeatures returns the expected feature vector length
func (b *Booster) NumFeatures() int {
	return b.ensemble.NFeatures()
}

// PredictProba returns class probabilities for one feature vector
func (b *Booster) PredictProba(features []float64) ([]float64, error) {
	if n := b.ensemble.NFeatures(); len(features) != n {
		return nil, fmt.Errorf("expected %d features, got %d", n, len(features))
	}
	preds := make([]float64, b.ensemble.NOutputGroups())
	if err := b.ensemble.Predict(features, 0, preds); err != nil {
		return nil, fmt.Errorf("failed to run LightGBM model: %w", err)
	}
	return preds, nil
}
