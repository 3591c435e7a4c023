package explain

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// Options configures the explanation engine
type Options struct {
	SLIC        SLICOptions
	Seed        uint64
	KernelWidth float64
	Alpha       float64
	// BatchSize is the number of perturbed images sent to the model per call
	BatchSize int
	MaxPixels int
}

// DefaultOptions returns the standard explanation settings
func DefaultOptions() Options {
	return Options{
		SLIC: SLICOptions{
			Segments:    50,
			Compactness: 10,
			Sigma:       1,
		},
		Seed:        42,
		KernelWidth: 0.25,
		Alpha:       1,
		BatchSize:   10,
	}
}

// Engine explains predictions of a probability model
type Engine struct {
	model  core.ProbabilityModel
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a new explanation engine
func NewEngine(model core.ProbabilityModel, opts Options, logger *zap.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.KernelWidth <= 0 {
		opts.KernelWidth = 0.25
	}
	return &Engine{
		model:  model,
		opts:   opts,
		logger: logger,
	}
}

// Explain attributes the probability of class target to superpixels of the image.
// The context is checked between model batches.
func (e *Engine) Explain(ctx context.Context, data []byte, target int, label string, numSamples int) (*core.ExplanationArtifact, error) {
	if err := core.ValidateSampleCount(numSamples); err != nil {
		return nil, err
	}
	if target < 0 {
		return nil, &core.ValidationError{Field: "target", Message: fmt.Sprintf("invalid class index %d", target)}
	}

	decoded, _, err := imaging.DecodeLimited(data, e.opts.MaxPixels)
	if err != nil {
		return nil, &core.ExplanationError{Stage: "decode", Err: err}
	}
	base := imaging.Resize(decoded, e.model.InputSize(), xdraw.BiLinear)

	start := time.Now()
	seg := SLIC(base, e.opts.SLIC)
	e.logger.Debug("Segmented image",
		zap.Int("segments", seg.Count),
		zap.Duration("duration", time.Since(start)))

	samples := SampleMatrix(numSamples, seg.Count, e.opts.Seed)
	targets, err := e.score(ctx, base, seg, samples, target)
	if err != nil {
		return nil, err
	}

	weights := KernelWeights(samples, e.opts.KernelWidth)
	surrogate, err := FitRidge(samples, targets, weights, e.opts.Alpha)
	if err != nil {
		return nil, &core.ExplanationError{Stage: "surrogate", Err: err}
	}

	ranked := Rank(surrogate.Coef)
	stats := Summarize(label, surrogate)

	rendered, err := Render(&Report{
		Image:      base,
		Segments:   seg,
		Ranked:     ranked,
		Statistics: stats,
	})
	if err != nil {
		return nil, &core.ExplanationError{Stage: "render", Err: err}
	}

	e.logger.Debug("Explanation complete",
		zap.String("label", label),
		zap.Int("num_samples", numSamples),
		zap.Float64("net_support", stats.NetSupport),
		zap.Float64("surrogate_score", surrogate.Score),
		zap.Duration("duration", time.Since(start)))

	return &core.ExplanationArtifact{
		Image:      rendered,
		Statistics: stats,
		Importance: core.SegmentImportance{Target: target, Weights: ranked},
		NumSamples: numSamples,
	}, nil
}

// score queries the model for every perturbed sample and returns the target probabilities
func (e *Engine) score(ctx context.Context, base *image.RGBA, seg *Segmentation, samples [][]float64, target int) ([]float64, error) {
	targets := make([]float64, 0, len(samples))
	for lo := 0; lo < len(samples); lo += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, &core.ExplanationError{Stage: "perturbation", Err: err}
		}

		hi := min(lo+e.opts.BatchSize, len(samples))
		batch := make([]image.Image, 0, hi-lo)
		for _, active := range samples[lo:hi] {
			batch = append(batch, Perturb(base, seg, active))
		}

		probs, err := e.model.Probabilities(ctx, batch)
		if err != nil {
			return nil, &core.ExplanationError{Stage: "inference", Err: err}
		}
		if len(probs) != len(batch) {
			return nil, &core.ExplanationError{
				Stage: "inference",
				Err:   fmt.Errorf("model returned %d rows for %d images", len(probs), len(batch)),
			}
		}
		for _, row := range probs {
			if target >= len(row) {
				return nil, &core.ExplanationError{
					Stage: "inference",
					Err:   fmt.Errorf("class index %d out of range for %d classes", target, len(row)),
				}
			}
			targets = append(targets, row[target])
		}
	}
	return targets, nil
}
