package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/mikey/teethanalyzer/internal/adapters/lightgbm"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap/zaptest"
)

type fakeServer struct {
	mu          sync.Mutex
	predictions map[string][][]float64
	// perImage answers every instance of a request with the same row
	perImage  map[string][]float64
	calls     map[string]int
	statusErr error
}

func newFakeServer() *fakeServer {
	return &fakeServer{predictions: map[string][][]float64{}, perImage: map[string][]float64{}, calls: map[string]int{}}
}

func (f *fakeServer) Predict(ctx context.Context, model, signature string, instances any) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[signature]++
	if row, ok := f.perImage[signature]; ok {
		n := len(instances.([][][][]float32))
		out := make([][]float64, n)
		for i := range out {
			out[i] = append([]float64(nil), row...)
		}
		return out, nil
	}
	rows, ok := f.predictions[signature]
	if !ok {
		return nil, errors.New("unknown signature " + signature)
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out, nil
}

func (f *fakeServer) Status(ctx context.Context, model string) error { return f.statusErr }

type fakeBooster struct {
	classes int
}

func (b fakeBooster) NumClasses() int { return b.classes }

// PredictProba echoes the features so tests control the tree output
func (b fakeBooster) PredictProba(features []float64) ([]float64, error) {
	return features, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(3, 3, color.RGBA{10, 20, 30, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestMeanProbabilitiesIsNotMajorityVote(t *testing.T) {
	rows := [][]float64{{0.6, 0.4}, {0.6, 0.4}, {0.0, 1.0}}
	mean := MeanProbabilities(rows)
	if Argmax(mean) != 1 {
		t.Fatalf("mean %v should favour class 1", mean)
	}
	if math.Abs(mean[0]-0.4) > 1e-9 || math.Abs(mean[1]-0.6) > 1e-9 {
		t.Fatalf("unexpected mean %v", mean)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	p := Softmax([]float64{1000, 1001, 999})
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 || Argmax(p) != 1 {
		t.Fatalf("unexpected softmax %v", p)
	}
}

func TestNeuralPredictAveragesBatch(t *testing.T) {
	server := newFakeServer()
	server.predictions["serving_default"] = [][]float64{
		{0.6, 0.4, 0, 0, 0, 0},
		{0.6, 0.4, 0, 0, 0, 0},
		{0, 1, 0, 0, 0, 0},
	}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", Signature: "serving_default", ImageSize: 32}, zaptest.NewLogger(t))

	img := pngBytes(t)
	result, err := c.Predict(context.Background(), [][]byte{img, img, img})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Label != "Dental Caries" || result.ClassIndex != 1 {
		t.Fatalf("label = %s (%d)", result.Label, result.ClassIndex)
	}
	if math.Abs(result.Confidence-0.6) > 1e-9 || result.Source != core.SourceNeural || result.ImageCount != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.AllScores) != len(DefaultLabels) {
		t.Fatalf("expected all labels scored, got %v", result.AllScores)
	}
}

func TestNeuralPredictSingleImageUsesRowAsIs(t *testing.T) {
	server := newFakeServer()
	server.predictions[""] = [][]float64{{0.1, 0.1, 0.1, 0.5, 0.1, 0.1}}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", ImageSize: 32}, zaptest.NewLogger(t))

	result, err := c.Predict(context.Background(), [][]byte{pngBytes(t)})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Label != "Hypodontia" || result.Confidence != 0.5 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNeuralPredictDecodeFailureIsAtomic(t *testing.T) {
	server := newFakeServer()
	server.predictions[""] = [][]float64{{1, 0, 0, 0, 0, 0}, {1, 0, 0, 0, 0, 0}}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", ImageSize: 32}, zaptest.NewLogger(t))

	result, err := c.Predict(context.Background(), [][]byte{pngBytes(t), []byte("not an image")})
	if result != nil {
		t.Fatalf("expected no partial result")
	}
	var inferr *core.InferenceError
	var derr *core.DecodeError
	if !errors.As(err, &inferr) || !errors.As(err, &derr) {
		t.Fatalf("expected InferenceError wrapping DecodeError, got %v", err)
	}
	if server.calls[""] != 0 {
		t.Fatalf("model server should not be called")
	}
}

func sameDecision(t *testing.T, batch, single *core.ClassificationResult) {
	t.Helper()
	if batch.Label != single.Label || batch.ClassIndex != single.ClassIndex {
		t.Fatalf("batch label %s (%d), single %s (%d)", batch.Label, batch.ClassIndex, single.Label, single.ClassIndex)
	}
	if math.Abs(batch.Confidence-single.Confidence) > 1e-12 {
		t.Fatalf("batch confidence %v, single %v", batch.Confidence, single.Confidence)
	}
	for label, score := range single.AllScores {
		if math.Abs(batch.AllScores[label]-score) > 1e-12 {
			t.Fatalf("%s: batch score %v, single %v", label, batch.AllScores[label], score)
		}
	}
}

func TestNeuralPredictIdenticalBatchMatchesSingle(t *testing.T) {
	server := newFakeServer()
	server.perImage["serving_default"] = []float64{0.05, 0.1, 0.15, 0.2, 0.3, 0.2}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", Signature: "serving_default", ImageSize: 32}, zaptest.NewLogger(t))

	img := pngBytes(t)
	single, err := c.Predict(context.Background(), [][]byte{img})
	if err != nil {
		t.Fatalf("Predict single: %v", err)
	}
	batch, err := c.Predict(context.Background(), [][]byte{img, img, img})
	if err != nil {
		t.Fatalf("Predict batch: %v", err)
	}
	sameDecision(t, batch, single)
	if batch.ImageCount != 3 || single.ImageCount != 1 {
		t.Fatalf("image counts %d and %d", batch.ImageCount, single.ImageCount)
	}
}

func TestNeuralPredictRejectsOversizedImage(t *testing.T) {
	server := newFakeServer()
	server.perImage[""] = []float64{1, 0, 0, 0, 0, 0}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", ImageSize: 32, MaxPixels: 100}, zaptest.NewLogger(t))

	_, err := c.Predict(context.Background(), [][]byte{pngBytes(t)})
	var derr *core.DecodeError
	if !errors.As(err, &derr) || !errors.Is(err, imaging.ErrTooManyPixels) {
		t.Fatalf("expected pixel limit DecodeError, got %v", err)
	}
	if server.calls[""] != 0 {
		t.Fatalf("model server should not be called")
	}
}

func TestNeuralPredictRejectsWrongClassCount(t *testing.T) {
	server := newFakeServer()
	server.predictions[""] = [][]float64{{0.5, 0.5}}
	c := NewNeuralClassifier(server, NeuralConfig{ModelName: "neural", ImageSize: 32}, zaptest.NewLogger(t))

	_, err := c.Predict(context.Background(), [][]byte{pngBytes(t)})
	var inferr *core.InferenceError
	if !errors.As(err, &inferr) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
}

func newHybrid(t *testing.T, server *fakeServer) *HybridClassifier {
	t.Helper()
	h := NewHybridClassifier(server, HybridConfig{
		ModelName:         "hybrid",
		LogitsSignature:   "logits",
		FeaturesSignature: "features",
		ImageSize:         32,
		ApplySoftmax:      true,
	}, zaptest.NewLogger(t))
	h.loadHead = func() (Booster, *lightgbm.Metadata, error) {
		return fakeBooster{classes: 3}, &lightgbm.Metadata{LabelEncoderClasses: []string{"Calculus", "Gingivitis", "Mouth Ulcer"}}, nil
	}
	return h
}

func TestHybridPredictRequiresLoad(t *testing.T) {
	h := newHybrid(t, newFakeServer())
	_, err := h.Predict(context.Background(), [][]byte{pngBytes(t)})
	var unavailable *core.ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
}

func TestHybridPredictReportsBothHeads(t *testing.T) {
	server := newFakeServer()
	server.predictions["logits"] = [][]float64{{5, 0, 0}}
	server.predictions["features"] = [][]float64{{0.1, 0.2, 0.7}}
	h := newHybrid(t, server)
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	result, err := h.Predict(context.Background(), [][]byte{pngBytes(t)})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Label != "Mouth Ulcer" || result.ClassIndex != 2 || result.Confidence != 0.7 {
		t.Fatalf("unexpected hybrid decision %+v", result)
	}
	if result.CNNLabel != "Calculus" || result.CNNConfidence < 0.98 {
		t.Fatalf("unexpected cnn decision %s %.3f", result.CNNLabel, result.CNNConfidence)
	}
	if result.Source != core.SourceHybrid || result.AllScores["Gingivitis"] != 0.2 {
		t.Fatalf("unexpected scores %+v", result.AllScores)
	}
}

func TestHybridPredictIdenticalBatchMatchesSingle(t *testing.T) {
	server := newFakeServer()
	server.perImage["logits"] = []float64{0.5, 2, 1}
	server.perImage["features"] = []float64{0.25, 0.15, 0.6}
	h := newHybrid(t, server)
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	img := pngBytes(t)
	single, err := h.Predict(context.Background(), [][]byte{img})
	if err != nil {
		t.Fatalf("Predict single: %v", err)
	}
	batch, err := h.Predict(context.Background(), [][]byte{img, img, img})
	if err != nil {
		t.Fatalf("Predict batch: %v", err)
	}
	sameDecision(t, batch, single)
	if batch.CNNLabel != single.CNNLabel || math.Abs(batch.CNNConfidence-single.CNNConfidence) > 1e-12 {
		t.Fatalf("cnn head differs: %s %v vs %s %v", batch.CNNLabel, batch.CNNConfidence, single.CNNLabel, single.CNNConfidence)
	}
}

func TestHybridLoadRejectsClassMismatch(t *testing.T) {
	h := newHybrid(t, newFakeServer())
	h.loadHead = func() (Booster, *lightgbm.Metadata, error) {
		return fakeBooster{classes: 6}, &lightgbm.Metadata{DiseaseClasses: []string{"a", "b"}}, nil
	}
	if err := h.Load(context.Background()); err == nil {
		t.Fatalf("expected class count mismatch")
	}
	if h.Labels() != nil {
		t.Fatalf("labels should be empty after failed load")
	}
}

func TestHybridProbabilitiesAreSoftmaxed(t *testing.T) {
	server := newFakeServer()
	server.predictions["logits"] = [][]float64{{0, 0, 0}, {10, 0, 0}}
	h := newHybrid(t, server)
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	rows, err := h.Probabilities(context.Background(), []image.Image{img, img})
	if err != nil {
		t.Fatalf("Probabilities: %v", err)
	}
	if math.Abs(rows[0][0]-1.0/3) > 1e-9 || rows[1][0] < 0.99 {
		t.Fatalf("unexpected probabilities %v", rows)
	}
}
