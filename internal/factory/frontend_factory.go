package factory

import (
	"fmt"

	"github.com/mikey/teethanalyzer/internal/adapters/cli"
	"github.com/mikey/teethanalyzer/internal/adapters/httpapi"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/ports"
	"github.com/mikey/teethanalyzer/internal/whitelist"
	"go.uber.org/zap"
)

// FrontendFactory creates frontends based on configuration
type FrontendFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger) *FrontendFactory {
	return &FrontendFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateFrontend creates a frontend based on server.frontend. cliOpts is only
// required by the cli frontend.
func (f *FrontendFactory) CreateFrontend(
	service *core.DiagnosisService,
	relay *core.ChatRelay,
	cliOpts *cli.Options,
) (ports.Frontend, error) {
	sc := f.cfg.GetServer()

	switch sc.Frontend {
	case "http":
		checker := whitelist.NewChecker(sc.AllowedOrigins, f.logger.Named("cors"))
		return httpapi.NewServer(service, relay, checker, httpapi.Options{
			ListenAddress:   sc.ListenAddress,
			MaxUploadBytes:  sc.MaxUploadBytes,
			RequestTimeout:  sc.RequestTimeout,
			ShutdownTimeout: sc.ShutdownTimeout,
			DefaultSamples:  f.cfg.GetExplain().DefaultSamples,
		}, f.logger.Named("http")), nil
	case "cli":
		if cliOpts == nil {
			return nil, fmt.Errorf("cli frontend requires command line options")
		}
		return cli.NewFrontend(service, *cliOpts, f.logger.Named("cli")), nil
	default:
		return nil, fmt.Errorf("unsupported frontend type: %s", sc.Frontend)
	}
}
