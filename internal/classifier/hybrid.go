package classifier

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/mikey/teethanalyzer/internal/adapters/lightgbm"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap"
)

// HybridConfig configures the CNN + LightGBM classifier
type HybridConfig struct {
	ModelName         string
	LogitsSignature   string
	FeaturesSignature string
	ImageSize         int
	BoosterPath       string
	MetadataPath      string
	ApplySoftmax      bool
	MaxPixels         int
}

// Booster is the tree model that classifies CNN embeddings
type Booster interface {
	NumClasses() int
	PredictProba(features []float64) ([]float64, error)
}

type hybridState struct {
	booster Booster
	classes []string
}

// HybridClassifier extracts CNN embeddings at 260x260 and classifies them with a
// LightGBM model. The CNN softmax is reported as a secondary opinion and drives
// explanations.
type HybridClassifier struct {
	server ModelServer
	cfg    HybridConfig
	spec   imaging.Spec
	logger *zap.Logger
	state  atomic.Pointer[hybridState]

	loadHead func() (Booster, *lightgbm.Metadata, error)
}

// NewHybridClassifier creates a new hybrid classifier. Load must succeed before Predict.
func NewHybridClassifier(server ModelServer, cfg HybridConfig, logger *zap.Logger) *HybridClassifier {
	h := &HybridClassifier{
		server: server,
		cfg:    cfg,
		spec:   imaging.HybridSpec(cfg.ImageSize),
		logger: logger,
	}
	h.loadHead = func() (Booster, *lightgbm.Metadata, error) {
		metadata, err := lightgbm.LoadMetadata(cfg.MetadataPath)
		if err != nil {
			return nil, nil, err
		}
		booster, err := lightgbm.LoadBooster(cfg.BoosterPath)
		if err != nil {
			return nil, nil, err
		}
		return booster, metadata, nil
	}
	return h
}

// Name implements core.Loadable
func (h *HybridClassifier) Name() string { return core.ModelHybrid }

// Labels implements core.Classifier
func (h *HybridClassifier) Labels() []string {
	if s := h.state.Load(); s != nil {
		return s.classes
	}
	return nil
}

// InputSize implements core.ProbabilityModel
func (h *HybridClassifier) InputSize() int { return h.cfg.ImageSize }

// Load checks the served CNN and loads the tree model and its metadata
func (h *HybridClassifier) Load(ctx context.Context) error {
	if err := h.server.Status(ctx, h.cfg.ModelName); err != nil {
		return fmt.Errorf("hybrid model %s: %w", h.cfg.ModelName, err)
	}
	booster, metadata, err := h.loadHead()
	if err != nil {
		return err
	}
	classes := metadata.Classes()
	if booster.NumClasses() != len(classes) {
		return fmt.Errorf("tree model predicts %d classes but metadata lists %d", booster.NumClasses(), len(classes))
	}
	h.state.Store(&hybridState{booster: booster, classes: classes})

	h.logger.Info("Hybrid classifier ready",
		zap.String("model", h.cfg.ModelName),
		zap.Strings("classes", classes),
		zap.Int("feature_dim", metadata.FeatureDim))
	return nil
}

// Predict classifies one or more images. CNN and tree probabilities are each
// averaged across the batch before the arg-max.
func (h *HybridClassifier) Predict(ctx context.Context, images [][]byte) (*core.ClassificationResult, error) {
	state := h.state.Load()
	if state == nil {
		return nil, &core.ModelUnavailableError{Model: h.Name()}
	}
	if len(images) == 0 {
		return nil, &core.InferenceError{Model: h.Name(), Err: fmt.Errorf("no images")}
	}

	instances, err := preprocessBatch(ctx, images, h.spec, h.cfg.MaxPixels)
	if err != nil {
		return nil, &core.InferenceError{Model: h.Name(), Err: err}
	}

	cnn, err := h.cnnProbabilities(ctx, instances, len(state.classes))
	if err != nil {
		return nil, &core.InferenceError{Model: h.Name(), Err: err}
	}

	features, err := h.server.Predict(ctx, h.cfg.ModelName, h.cfg.FeaturesSignature, instances)
	if err != nil {
		return nil, &core.InferenceError{Model: h.Name(), Err: fmt.Errorf("feature extraction: %w", err)}
	}
	if len(features) != len(images) {
		return nil, &core.InferenceError{Model: h.Name(), Err: fmt.Errorf("expected %d embeddings, got %d", len(images), len(features))}
	}

	tree := make([][]float64, len(features))
	for i, f := range features {
		tree[i], err = state.booster.PredictProba(f)
		if err != nil {
			return nil, &core.InferenceError{Model: h.Name(), Err: fmt.Errorf("image %d: %w", i, err)}
		}
	}

	result := buildResult(state.classes, MeanProbabilities(tree), core.SourceHybrid, h.cfg.ModelName, len(images))
	cnnMean := MeanProbabilities(cnn)
	cnnIdx := Argmax(cnnMean)
	result.CNNLabel = state.classes[cnnIdx]
	result.CNNConfidence = cnnMean[cnnIdx]

	h.logger.Debug("Hybrid classification",
		zap.String("hybrid_label", result.Label),
		zap.Float64("hybrid_confidence", result.Confidence),
		zap.String("cnn_label", result.CNNLabel),
		zap.Float64("cnn_confidence", result.CNNConfidence))
	return result, nil
}

// Probabilities implements core.ProbabilityModel with the CNN softmax
func (h *HybridClassifier) Probabilities(ctx context.Context, images []image.Image) ([][]float64, error) {
	state := h.state.Load()
	if state == nil {
		return nil, &core.ModelUnavailableError{Model: h.Name()}
	}
	return h.cnnProbabilities(ctx, prepareDecoded(images, h.spec), len(state.classes))
}

func (h *HybridClassifier) cnnProbabilities(ctx context.Context, instances [][][][]float32, classes int) ([][]float64, error) {
	rows, err := h.server.Predict(ctx, h.cfg.ModelName, h.cfg.LogitsSignature, instances)
	if err != nil {
		return nil, fmt.Errorf("cnn head: %w", err)
	}
	if err := checkRows(rows, len(instances), classes); err != nil {
		return nil, fmt.Errorf("cnn head: %w", err)
	}
	if h.cfg.ApplySoftmax {
		for i := range rows {
			rows[i] = Softmax(rows[i])
		}
	}
	return rows, nil
}
