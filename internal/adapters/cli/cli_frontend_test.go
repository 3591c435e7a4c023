package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap/zaptest"
)

type fakeService struct {
	anomalous map[string]bool
	explainFn func(image []byte, numSamples int) (*core.Diagnosis, error)

	predictBatches [][][]byte
	explainCalls   int
}

func (s *fakeService) PredictDisease(ctx context.Context, images [][]byte) (*core.ClassificationResult, error) {
	s.predictBatches = append(s.predictBatches, images)
	return &core.ClassificationResult{Label: "Caries", Confidence: 0.75}, nil
}

func (s *fakeService) PredictFast(ctx context.Context, image []byte) (*core.ClassificationResult, error) {
	return &core.ClassificationResult{
		Label:         "Gingivitis",
		ClassIndex:    2,
		Confidence:    0.9,
		CNNLabel:      "Caries",
		CNNConfidence: 0.6,
		AllScores:     map[string]float64{"Gingivitis": 0.9, "Caries": 0.1},
	}, nil
}

func (s *fakeService) ValidateImage(ctx context.Context, image []byte) (*core.AnomalyVerdict, error) {
	bad := s.anomalous[string(image)]
	return &core.AnomalyVerdict{ReconstructionError: 0.01, Threshold: 0.05, IsAnomalous: bad, Confidence: 0.8}, nil
}

func (s *fakeService) Explain(ctx context.Context, image []byte, numSamples int) (*core.Diagnosis, error) {
	s.explainCalls++
	if s.explainFn != nil {
		return s.explainFn(image, numSamples)
	}
	return &core.Diagnosis{
		Prediction: &core.ClassificationResult{Label: "Gingivitis"},
		Explanation: &core.ExplanationArtifact{
			Image:      []byte("\x89PNG"),
			NumSamples: numSamples,
			Statistics: core.ExplanationStatistics{AssessmentLabel: "Strong Support", NetSupport: 0.2},
		},
	}, nil
}

func writeImages(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, c+".jpg")
		if err := os.WriteFile(paths[i], []byte(c), 0644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	return paths
}

func TestFrontendSkipsRejectedImages(t *testing.T) {
	svc := &fakeService{anomalous: map[string]bool{"selfie": true}}
	f := NewFrontend(svc, Options{Files: writeImages(t, "molar", "selfie", "incisor")}, zaptest.NewLogger(t))
	var out bytes.Buffer
	f.SetOutput(&out)

	if err := f.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(svc.predictBatches) != 1 || len(svc.predictBatches[0]) != 2 {
		t.Fatalf("expected one batch of two images, got %v", svc.predictBatches)
	}
	report := out.String()
	for _, want := range []string{"selfie.jpg: not a dental image", "Neural prediction: Caries (75.00%)", "Hybrid prediction: Gingivitis (90.00%)"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if svc.explainCalls != 0 {
		t.Error("explanation ran without -explain")
	}
}

func TestFrontendNothingToClassify(t *testing.T) {
	svc := &fakeService{anomalous: map[string]bool{"cat": true}}
	f := NewFrontend(svc, Options{Files: writeImages(t, "cat")}, zaptest.NewLogger(t))
	var out bytes.Buffer
	f.SetOutput(&out)

	if err := f.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(svc.predictBatches) != 0 {
		t.Error("classifier ran on rejected image")
	}
	if !strings.Contains(out.String(), "nothing to classify") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestFrontendWritesExplanation(t *testing.T) {
	svc := &fakeService{}
	outPath := filepath.Join(t.TempDir(), "lime.png")
	f := NewFrontend(svc, Options{Files: writeImages(t, "molar"), Explain: true, Samples: 150, Out: outPath, Verbose: true}, zaptest.NewLogger(t))
	var out bytes.Buffer
	f.SetOutput(&out)

	if err := f.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil || string(data) != "\x89PNG" {
		t.Fatalf("explanation image not written: %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "Assessment: Strong Support") || !strings.Contains(report, "150 samples") {
		t.Errorf("unexpected report:\n%s", report)
	}
	gingivitis, caries := strings.Index(report, "\n  Gingivitis "), strings.Index(report, "\n  Caries ")
	if gingivitis < 0 || caries < 0 || gingivitis > caries {
		t.Errorf("scores not ordered by probability:\n%s", report)
	}
}

func TestFrontendPropagatesExplanationError(t *testing.T) {
	want := &core.ExplanationError{Stage: "render", Err: errors.New("boom")}
	svc := &fakeService{explainFn: func([]byte, int) (*core.Diagnosis, error) { return nil, want }}
	f := NewFrontend(svc, Options{Files: writeImages(t, "molar"), Explain: true, Out: filepath.Join(t.TempDir(), "x.png")}, zaptest.NewLogger(t))
	f.SetOutput(&bytes.Buffer{})

	if err := f.Start(); !errors.Is(err, want) {
		t.Fatalf("Start() error = %v, want %v", err, want)
	}
}

func TestFrontendRequiresFiles(t *testing.T) {
	f := NewFrontend(&fakeService{}, Options{}, zaptest.NewLogger(t))
	var verr *core.ValidationError
	if err := f.Start(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFrontendMissingFile(t *testing.T) {
	f := NewFrontend(&fakeService{}, Options{Files: []string{filepath.Join(t.TempDir(), "nope.jpg")}}, zaptest.NewLogger(t))
	f.SetOutput(&bytes.Buffer{})
	if err := f.Start(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
