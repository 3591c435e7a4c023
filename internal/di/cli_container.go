package di

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/teethanalyzer/internal/adapters/cli"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/logging"
)

// fileList collects a repeatable -file flag
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	Files    []string
	Explain  bool
	Samples  int
	Out      string
	SkipGate bool

	// Model server flags
	ServingURL string
	Threshold  float64

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}
	var files fileList

	// Input flags
	fs.Var(&files, "file", "Image file to diagnose (repeatable)")
	fs.BoolVar(&flags.Explain, "explain", false, "Generate a LIME explanation for the first image")
	fs.IntVar(&flags.Samples, "samples", core.DefaultExplanationSamples, "Number of LIME samples (100-1000)")
	fs.StringVar(&flags.Out, "out", "explanation.png", "Path of the explanation image")
	fs.BoolVar(&flags.SkipGate, "skip-gate", false, "Classify images rejected by the autoencoder")

	// Model server flags
	fs.StringVar(&flags.ServingURL, "serving-url", "http://localhost:8501", "Base URL of the model server")
	fs.Float64Var(&flags.Threshold, "threshold", 0.05, "Autoencoder reconstruction error threshold")

	// Output flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	_ = fs.Parse(args)
	flags.Files = files
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register CLI options
	if err := container.Provide(func(flags *CLIFlags) *cli.Options {
		return &cli.Options{
			Files:    flags.Files,
			Explain:  flags.Explain,
			Samples:  flags.Samples,
			Out:      flags.Out,
			Verbose:  flags.Verbose,
			SkipGate: flags.SkipGate,
		}
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewWithFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			cfg.GetViper().Set("server.frontend", "cli")
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideApplication(container); err != nil {
		return nil, err
	}

	// Register service options with no cache
	if err := container.Provide(func(cfg *config.Config) core.ServiceOptions {
		wc := cfg.GetWorkers()
		return core.ServiceOptions{
			CacheEnabled:     false,
			InferenceWorkers: wc.Inference,
			ExplainWorkers:   wc.Explain,
		}
	}); err != nil {
		return nil, err
	}

	// No cache for CLI
	if err := container.Provide(func() core.CacheRepository { return nil }); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.frontend", "cli")
	v.Set("cache.enabled", false)
	v.Set("llm.provider", "none")

	v.Set("models.serving_url", flags.ServingURL)
	v.Set("models.autoencoder.threshold", flags.Threshold)
	v.Set("explain.default_samples", flags.Samples)

	return config.NewFromViper(v)
}
