// Package classifier adapts the served dental models to core.Classifier.
package classifier

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"golang.org/x/sync/errgroup"
)

// ModelServer runs a served model. *tfserving.Client implements it.
type ModelServer interface {
	Predict(ctx context.Context, model, signature string, instances any) ([][]float64, error)
	Status(ctx context.Context, model string) error
}

// Softmax converts logits into probabilities
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		maxV = math.Max(maxV, v)
	}
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value, preferring the first on ties
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// MeanProbabilities averages probability rows class by class. A single row is
// returned unchanged.
func MeanProbabilities(rows [][]float64) []float64 {
	if len(rows) == 1 {
		return rows[0]
	}
	mean := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i, v := range row {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(rows))
	}
	return mean
}

func checkRows(rows [][]float64, want, classes int) error {
	if len(rows) != want {
		return fmt.Errorf("expected %d predictions, got %d", want, len(rows))
	}
	for i, row := range rows {
		if len(row) != classes {
			return fmt.Errorf("prediction %d has %d scores, expected %d classes", i, len(row), classes)
		}
	}
	return nil
}

// preprocessBatch decodes and prepares every image concurrently
func preprocessBatch(ctx context.Context, images [][]byte, spec imaging.Spec, maxPixels int) ([][][][]float32, error) {
	instances := make([][][][]float32, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, data := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, _, err := imaging.DecodeLimited(data, maxPixels)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			t, err := imaging.Preprocess(img, spec)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			instances[i] = t.Nested()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return instances, nil
}

// prepareDecoded prepares already decoded images without another decode pass
func prepareDecoded(images []image.Image, spec imaging.Spec) [][][][]float32 {
	instances := make([][][][]float32, len(images))
	for i, img := range images {
		instances[i] = imaging.FromRGBA(imaging.Resize(img, spec.Size, spec.Kernel), spec).Nested()
	}
	return instances
}

func buildResult(labels []string, probs []float64, source core.Source, model string, images int) *core.ClassificationResult {
	idx := Argmax(probs)
	scores := make(map[string]float64, len(labels))
	for i, label := range labels {
		scores[label] = probs[i]
	}
	return &core.ClassificationResult{
		Label:       labels[idx],
		ClassIndex:  idx,
		Confidence:  probs[idx],
		AllScores:   scores,
		Source:      source,
		ModelUsed:   model,
		ImageCount:  images,
		PredictedAt: time.Now(),
	}
}
