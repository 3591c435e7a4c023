package classifier

import (
	"context"
	"fmt"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap"
)

// DefaultLabels is the class order of the neural dental model
var DefaultLabels = []string{
	"Calculus",
	"Dental Caries",
	"Gingivitis",
	"Hypodontia",
	"Mouth Ulcer",
	"Tooth Discoloration",
}

// NeuralConfig configures the neural classifier
type NeuralConfig struct {
	ModelName    string
	Signature    string
	ImageSize    int
	Labels       []string
	ApplySoftmax bool
	// MaxPixels bounds decoded uploads, 0 selects imaging.DefaultMaxPixels
	MaxPixels int
}

// NeuralClassifier is the plain CNN classifier served at 224x224
type NeuralClassifier struct {
	server ModelServer
	cfg    NeuralConfig
	spec   imaging.Spec
	logger *zap.Logger
}

// NewNeuralClassifier creates a new neural classifier
func NewNeuralClassifier(server ModelServer, cfg NeuralConfig, logger *zap.Logger) *NeuralClassifier {
	if len(cfg.Labels) == 0 {
		cfg.Labels = DefaultLabels
	}
	return &NeuralClassifier{
		server: server,
		cfg:    cfg,
		spec:   imaging.NeuralSpec(cfg.ImageSize),
		logger: logger,
	}
}

// Name implements core.Loadable
func (c *NeuralClassifier) Name() string { return core.ModelNeural }

// Labels implements core.Classifier
func (c *NeuralClassifier) Labels() []string { return c.cfg.Labels }

// Load checks that the model server has the model available
func (c *NeuralClassifier) Load(ctx context.Context) error {
	if err := c.server.Status(ctx, c.cfg.ModelName); err != nil {
		return fmt.Errorf("neural model %s: %w", c.cfg.ModelName, err)
	}
	return nil
}

// Predict classifies one or more images. Per-image probabilities are averaged when
// more than one image is given.
func (c *NeuralClassifier) Predict(ctx context.Context, images [][]byte) (*core.ClassificationResult, error) {
	if len(images) == 0 {
		return nil, &core.InferenceError{Model: c.Name(), Err: fmt.Errorf("no images")}
	}

	instances, err := preprocessBatch(ctx, images, c.spec, c.cfg.MaxPixels)
	if err != nil {
		return nil, &core.InferenceError{Model: c.Name(), Err: err}
	}

	rows, err := c.server.Predict(ctx, c.cfg.ModelName, c.cfg.Signature, instances)
	if err != nil {
		return nil, &core.InferenceError{Model: c.Name(), Err: err}
	}
	if err := checkRows(rows, len(images), len(c.cfg.Labels)); err != nil {
		return nil, &core.InferenceError{Model: c.Name(), Err: err}
	}
	if c.cfg.ApplySoftmax {
		for i := range rows {
			rows[i] = Softmax(rows[i])
		}
	}

	result := buildResult(c.cfg.Labels, MeanProbabilities(rows), core.SourceNeural, c.cfg.ModelName, len(images))
	c.logger.Debug("Neural classification",
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Int("images", len(images)))
	return result, nil
}
