package factory

import (
	"github.com/mikey/teethanalyzer/internal/adapters/tfserving"
	"github.com/mikey/teethanalyzer/internal/anomaly"
	"github.com/mikey/teethanalyzer/internal/classifier"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/explain"
	"go.uber.org/zap"
)

// ModelFactory creates the classifiers, the anomaly gate and the explanation engine
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateServingClient creates the client of the model server shared by all models
func (f *ModelFactory) CreateServingClient() *tfserving.Client {
	sc := f.cfg.GetServing()
	return tfserving.NewClient(sc.URL, sc.Timeout, f.logger.Named("tfserving"))
}

// CreateNeuralClassifier creates the plain CNN classifier
func (f *ModelFactory) CreateNeuralClassifier(server *tfserving.Client) *classifier.NeuralClassifier {
	nc := f.cfg.GetNeural()
	return classifier.NewNeuralClassifier(server, classifier.NeuralConfig{
		ModelName:    nc.Name,
		Signature:    nc.Signature,
		ImageSize:    nc.ImageSize,
		Labels:       nc.Classes,
		ApplySoftmax: nc.ApplySoftmax,
		MaxPixels:    f.maxPixels(),
	}, f.logger.With(zap.String("model", core.ModelNeural)))
}

// CreateHybridClassifier creates the CNN + LightGBM classifier
func (f *ModelFactory) CreateHybridClassifier(server *tfserving.Client) *classifier.HybridClassifier {
	hc := f.cfg.GetHybrid()
	return classifier.NewHybridClassifier(server, classifier.HybridConfig{
		ModelName:         hc.Name,
		LogitsSignature:   hc.Signature,
		FeaturesSignature: hc.FeaturesSignature,
		ImageSize:         hc.ImageSize,
		BoosterPath:       hc.LightGBMPath,
		MetadataPath:      hc.MetadataPath,
		ApplySoftmax:      hc.ApplySoftmax,
		MaxPixels:         f.maxPixels(),
	}, f.logger.With(zap.String("model", core.ModelHybrid)))
}

// CreateAnomalyGate creates the autoencoder gate
func (f *ModelFactory) CreateAnomalyGate(server *tfserving.Client) *anomaly.Gate {
	ac := f.cfg.GetAutoencoder()
	return anomaly.NewGate(server, anomaly.Config{
		ModelName: ac.Name,
		Signature: ac.Signature,
		ImageSize: ac.ImageSize,
		Threshold: ac.Threshold,
		MaxPixels: f.maxPixels(),
	}, f.logger.With(zap.String("model", core.ModelAutoencoder)))
}

// CreateExplainer creates the explanation engine over the given model
func (f *ModelFactory) CreateExplainer(model core.ProbabilityModel) *explain.Engine {
	ec := f.cfg.GetExplain()
	return explain.NewEngine(model, explain.Options{
		SLIC: explain.SLICOptions{
			Segments:    ec.Segments,
			Compactness: ec.Compactness,
			Sigma:       ec.Sigma,
		},
		Seed:        ec.Seed,
		KernelWidth: ec.KernelWidth,
		Alpha:       ec.Alpha,
		BatchSize:   ec.BatchSize,
		MaxPixels:   f.maxPixels(),
	}, f.logger.Named("explain"))
}

// CreateRegistry creates the model registry holding every loadable model
func (f *ModelFactory) CreateRegistry(models ...core.Loadable) *core.ModelRegistry {
	registry := core.NewModelRegistry(f.logger.Named("registry"))
	for _, m := range models {
		registry.Register(m)
	}
	return registry
}

// CreateServiceOptions returns the diagnosis service options
func (f *ModelFactory) CreateServiceOptions() core.ServiceOptions {
	wc := f.cfg.GetWorkers()
	cc := f.cfg.GetCache()
	return core.ServiceOptions{
		CacheEnabled:     cc.Enabled,
		CacheTTL:         cc.TTL,
		InferenceWorkers: wc.Inference,
		ExplainWorkers:   wc.Explain,
	}
}

func (f *ModelFactory) maxPixels() int {
	return f.cfg.GetServer().MaxImagePixels
}
