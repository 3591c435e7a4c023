package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/teethanalyzer/internal/adapters/cli"
	"github.com/mikey/teethanalyzer/internal/adapters/tfserving"
	"github.com/mikey/teethanalyzer/internal/anomaly"
	"github.com/mikey/teethanalyzer/internal/classifier"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/explain"
	"github.com/mikey/teethanalyzer/internal/factory"
	"github.com/mikey/teethanalyzer/internal/logging"
	"github.com/mikey/teethanalyzer/internal/ports"
	"github.com/mikey/teethanalyzer/internal/utils"
)

// FrontendParams are the dependencies of the frontend. CLI options are only
// provided by the CLI container.
type FrontendParams struct {
	dig.In

	Factory *factory.FrontendFactory
	Service *core.DiagnosisService
	Relay   *core.ChatRelay
	CLI     *cli.Options `optional:"true"`
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideApplication(container); err != nil {
		return nil, err
	}

	// Register result cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register service options
	if err := container.Provide(func(f *factory.ModelFactory) core.ServiceOptions {
		return f.CreateServiceOptions()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideApplication registers everything shared by the server and the CLI
func provideApplication(container *dig.Container) error {
	// Register factories
	for _, constructor := range []any{
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewModelFactory,
		factory.NewTextProcessorFactory,
		factory.NewFrontendFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register model server client
	if err := container.Provide(func(f *factory.ModelFactory) *tfserving.Client {
		return f.CreateServingClient()
	}); err != nil {
		return err
	}

	// Register models
	if err := container.Provide(func(f *factory.ModelFactory, server *tfserving.Client) *classifier.NeuralClassifier {
		return f.CreateNeuralClassifier(server)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ModelFactory, server *tfserving.Client) *classifier.HybridClassifier {
		return f.CreateHybridClassifier(server)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ModelFactory, server *tfserving.Client) *anomaly.Gate {
		return f.CreateAnomalyGate(server)
	}); err != nil {
		return err
	}

	// Register explanation engine over the hybrid classifier
	if err := container.Provide(func(f *factory.ModelFactory, hybrid *classifier.HybridClassifier) *explain.Engine {
		return f.CreateExplainer(hybrid)
	}); err != nil {
		return err
	}

	// Register model registry
	if err := container.Provide(func(
		f *factory.ModelFactory,
		neural *classifier.NeuralClassifier,
		hybrid *classifier.HybridClassifier,
		gate *anomaly.Gate,
	) *core.ModelRegistry {
		return f.CreateRegistry(neural, hybrid, gate)
	}); err != nil {
		return err
	}

	// Register diagnosis service
	if err := container.Provide(func(
		registry *core.ModelRegistry,
		neural *classifier.NeuralClassifier,
		hybrid *classifier.HybridClassifier,
		gate *anomaly.Gate,
		explainer *explain.Engine,
		cache core.CacheRepository,
		logger *zap.Logger,
		opts core.ServiceOptions,
	) *core.DiagnosisService {
		return core.NewDiagnosisService(registry, neural, hybrid, gate, explainer, cache, logger.Named("diagnosis"), opts)
	}); err != nil {
		return err
	}

	// Register chat client
	if err := container.Provide(func(f *factory.LLMFactory) (core.ChatClient, error) {
		return f.CreateChatClient()
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register chat relay
	if err := container.Provide(func(
		client core.ChatClient,
		processor *utils.TextProcessor,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.ChatRelay {
		return core.NewChatRelay(client, processor, cfg.GetServer().MaxPromptSize, logger.Named("chat"))
	}); err != nil {
		return err
	}

	// Register frontend
	if err := container.Provide(func(p FrontendParams) (ports.Frontend, error) {
		return p.Factory.CreateFrontend(p.Service, p.Relay, p.CLI)
	}); err != nil {
		return err
	}

	return nil
}
