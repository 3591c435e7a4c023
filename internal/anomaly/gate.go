// Package anomaly rejects images that do not look like intra-oral photographs by
// measuring how well a convolutional autoencoder reconstructs them.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap"
)

// DefaultThreshold is the reconstruction MSE above which an image is anomalous
const DefaultThreshold = 0.05

// ModelServer runs the served autoencoder
type ModelServer interface {
	Predict(ctx context.Context, model, signature string, instances any) ([][]float64, error)
	Status(ctx context.Context, model string) error
}

// Config configures the gate
type Config struct {
	ModelName string
	Signature string
	ImageSize int
	Threshold float64
	MaxPixels int
}

// Gate implements core.AnomalyGate
type Gate struct {
	server ModelServer
	cfg    Config
	spec   imaging.Spec
	logger *zap.Logger
	ready  atomic.Bool
}

// NewGate creates a new anomaly gate
func NewGate(server ModelServer, cfg Config, logger *zap.Logger) *Gate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Gate{
		server: server,
		cfg:    cfg,
		spec:   imaging.NeuralSpec(cfg.ImageSize),
		logger: logger,
	}
}

// Name implements core.Loadable
func (g *Gate) Name() string { return core.ModelAutoencoder }

// Threshold returns the configured reconstruction threshold
func (g *Gate) Threshold() float64 { return g.cfg.Threshold }

// Load checks that the autoencoder is served
func (g *Gate) Load(ctx context.Context) error {
	if err := g.server.Status(ctx, g.cfg.ModelName); err != nil {
		return fmt.Errorf("autoencoder %s: %w", g.cfg.ModelName, err)
	}
	g.ready.Store(true)
	return nil
}

// Validate reconstructs the image and compares the error with the threshold
func (g *Gate) Validate(ctx context.Context, data []byte) (*core.AnomalyVerdict, error) {
	if !g.ready.Load() {
		return nil, &core.ModelUnavailableError{Model: g.Name()}
	}

	img, _, err := imaging.DecodeLimited(data, g.cfg.MaxPixels)
	if err != nil {
		return nil, &core.InferenceError{Model: g.Name(), Err: err}
	}
	tensor, err := imaging.Preprocess(img, g.spec)
	if err != nil {
		return nil, &core.InferenceError{Model: g.Name(), Err: err}
	}

	rows, err := g.server.Predict(ctx, g.cfg.ModelName, g.cfg.Signature, [][][][]float32{tensor.Nested()})
	if err != nil {
		return nil, &core.InferenceError{Model: g.Name(), Err: err}
	}
	if len(rows) != 1 {
		return nil, &core.InferenceError{Model: g.Name(), Err: fmt.Errorf("expected 1 reconstruction, got %d", len(rows))}
	}

	mse, err := MeanSquaredError(tensor.Data, rows[0])
	if err != nil {
		return nil, &core.InferenceError{Model: g.Name(), Err: err}
	}

	verdict := ComputeVerdict(mse, g.cfg.Threshold)
	g.logger.Debug("Autoencoder reconstruction",
		zap.Float64("mse", mse),
		zap.Float64("threshold", g.cfg.Threshold),
		zap.Bool("anomalous", verdict.IsAnomalous))
	return verdict, nil
}

// MeanSquaredError compares an input tensor with its reconstruction
func MeanSquaredError(input []float32, reconstruction []float64) (float64, error) {
	if len(input) != len(reconstruction) {
		return 0, fmt.Errorf("reconstruction has %d values, input has %d", len(reconstruction), len(input))
	}
	if len(input) == 0 {
		return 0, fmt.Errorf("empty tensor")
	}
	sum := 0.0
	for i, v := range input {
		d := float64(v) - reconstruction[i]
		sum += d * d
	}
	return sum / float64(len(input)), nil
}

// ComputeVerdict turns a reconstruction error into a verdict. The confidence grows
// with the distance from the threshold on either side and is capped at 0.99; it is
// a heuristic and not a calibrated probability.
func ComputeVerdict(reconstructionError, threshold float64) *core.AnomalyVerdict {
	return &core.AnomalyVerdict{
		ReconstructionError: reconstructionError,
		Threshold:           threshold,
		IsAnomalous:         reconstructionError > threshold,
		Confidence:          math.Min(0.99, 0.5+10*math.Abs(reconstructionError-threshold)),
	}
}
