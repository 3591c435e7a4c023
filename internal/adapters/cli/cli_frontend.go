package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

// Diagnoser is the part of the diagnosis service the CLI uses
type Diagnoser interface {
	PredictDisease(ctx context.Context, images [][]byte) (*core.ClassificationResult, error)
	PredictFast(ctx context.Context, image []byte) (*core.ClassificationResult, error)
	ValidateImage(ctx context.Context, image []byte) (*core.AnomalyVerdict, error)
	Explain(ctx context.Context, image []byte, numSamples int) (*core.Diagnosis, error)
}

// Options holds the command line options of a diagnosis run
type Options struct {
	Files   []string
	Explain bool
	Samples int
	Out     string
	Verbose bool
	// SkipGate classifies images even when the autoencoder rejects them
	SkipGate bool
}

// Frontend diagnoses local image files and prints a report
type Frontend struct {
	service Diagnoser
	opts    Options
	logger  *zap.Logger
	out     io.Writer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFrontend creates a new CLI frontend
func NewFrontend(service Diagnoser, opts Options, logger *zap.Logger) *Frontend {
	if opts.Samples == 0 {
		opts.Samples = core.DefaultExplanationSamples
	}
	if opts.Out == "" {
		opts.Out = "explanation.png"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Frontend{
		service: service,
		opts:    opts,
		logger:  logger,
		out:     os.Stdout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetOutput redirects the printed report
func (f *Frontend) SetOutput(w io.Writer) {
	f.out = w
}

// Start runs the diagnosis and returns when it is complete
func (f *Frontend) Start() error {
	if len(f.opts.Files) == 0 {
		return &core.ValidationError{Field: "file", Message: "at least one image file is required"}
	}

	images, err := f.readImages()
	if err != nil {
		return err
	}

	accepted, err := f.gate(images)
	if err != nil {
		return err
	}
	if len(accepted) == 0 {
		fmt.Fprintf(f.out, "\nNo image passed validation, nothing to classify.\n")
		return nil
	}

	return f.classify(accepted)
}

// Stop cancels a running diagnosis
func (f *Frontend) Stop() error {
	f.cancel()
	return nil
}

type namedImage struct {
	name string
	data []byte
}

func (f *Frontend) readImages() ([]namedImage, error) {
	images := make([]namedImage, 0, len(f.opts.Files))
	fmt.Fprintf(f.out, "\n=== Images ===\n")
	for _, path := range f.opts.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", path, err)
		}
		fmt.Fprintf(f.out, "%s: %d bytes\n", filepath.Base(path), len(data))
		images = append(images, namedImage{name: filepath.Base(path), data: data})
	}
	return images, nil
}

func (f *Frontend) gate(images []namedImage) ([]namedImage, error) {
	fmt.Fprintf(f.out, "\n=== Validation ===\n")
	accepted := make([]namedImage, 0, len(images))
	for _, img := range images {
		verdict, err := f.service.ValidateImage(f.ctx, img.data)
		if err != nil {
			f.logger.Error("Failed to validate image", zap.String("file", img.name), zap.Error(err))
			return nil, err
		}

		state := "valid"
		if verdict.IsAnomalous {
			state = "not a dental image"
		}
		fmt.Fprintf(f.out, "%s: %s (reconstruction error %.5f, threshold %.5f, confidence %.2f)\n",
			img.name, state, verdict.ReconstructionError, verdict.Threshold, verdict.Confidence)

		if !verdict.IsAnomalous || f.opts.SkipGate {
			accepted = append(accepted, img)
		}
	}
	return accepted, nil
}

func (f *Frontend) classify(images []namedImage) error {
	batch := make([][]byte, len(images))
	for i, img := range images {
		batch[i] = img.data
	}

	fmt.Fprintf(f.out, "\n=== Analysis ===\n")
	fmt.Fprintf(f.out, "Classifying %d image(s)...\n", len(images))
	startTime := time.Now()

	neural, err := f.service.PredictDisease(f.ctx, batch)
	if err != nil {
		f.logger.Error("Failed to classify images", zap.Error(err))
		return err
	}
	hybrid, err := f.service.PredictFast(f.ctx, batch[0])
	if err != nil {
		f.logger.Error("Failed to run hybrid classifier", zap.Error(err))
		return err
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Neural prediction: %s (%.2f%%)\n", neural.Label, neural.Confidence*100)
	fmt.Fprintf(f.out, "Hybrid prediction: %s (%.2f%%) for %s\n", hybrid.Label, hybrid.Confidence*100, images[0].name)
	fmt.Fprintf(f.out, "CNN head: %s (%.2f%%)\n", hybrid.CNNLabel, hybrid.CNNConfidence*100)
	if f.opts.Verbose {
		fmt.Fprintf(f.out, "All scores:\n%s", formatScores(hybrid.AllScores))
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", time.Since(startTime))

	if !f.opts.Explain {
		return nil
	}
	return f.explain(images[0])
}

func (f *Frontend) explain(img namedImage) error {
	fmt.Fprintf(f.out, "\n=== Explanation ===\n")
	fmt.Fprintf(f.out, "Explaining %s with %d samples...\n", img.name, f.opts.Samples)
	startTime := time.Now()

	diagnosis, err := f.service.Explain(f.ctx, img.data, f.opts.Samples)
	if err != nil {
		f.logger.Error("Failed to explain prediction", zap.Error(err))
		return err
	}
	if err := os.WriteFile(f.opts.Out, diagnosis.Explanation.Image, 0644); err != nil {
		return fmt.Errorf("failed to write explanation image: %w", err)
	}

	stats := diagnosis.Explanation.Statistics
	fmt.Fprintf(f.out, "Assessment: %s\n", stats.AssessmentLabel)
	fmt.Fprintf(f.out, "Supporting regions: %d (total %.4f)\n", stats.SupportCount, stats.TotalSupport)
	fmt.Fprintf(f.out, "Opposing regions: %d (total %.4f)\n", stats.AgainstCount, stats.TotalAgainst)
	fmt.Fprintf(f.out, "Net support: %+.4f\n", stats.NetSupport)
	fmt.Fprintf(f.out, "Explanation image: %s\n", f.opts.Out)
	fmt.Fprintf(f.out, "Processing time: %v\n", time.Since(startTime))
	return nil
}

func formatScores(scores map[string]float64) string {
	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	slices.SortFunc(labels, func(a, b string) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var b strings.Builder
	for _, label := range labels {
		fmt.Fprintf(&b, "  %-20s %6.2f%%\n", label, scores[label]*100)
	}
	return b.String()
}
