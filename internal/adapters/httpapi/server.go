package httpapi

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/whitelist"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Diagnoser is the part of the diagnosis service the HTTP surface uses
type Diagnoser interface {
	PredictDisease(ctx context.Context, images [][]byte) (*core.ClassificationResult, error)
	PredictFast(ctx context.Context, image []byte) (*core.ClassificationResult, error)
	ValidateImage(ctx context.Context, image []byte) (*core.AnomalyVerdict, error)
	Explain(ctx context.Context, image []byte, numSamples int) (*core.Diagnosis, error)
	Health(ctx context.Context, name string) core.ModelStatus
}

// Relayer streams chat completions
type Relayer interface {
	Relay(ctx context.Context, turn *core.ChatTurn) iter.Seq[string]
}

// Options configures the HTTP server
type Options struct {
	ListenAddress   string
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	DefaultSamples  int
}

// Server implements ports.Frontend over HTTP
type Server struct {
	service Diagnoser
	relay   Relayer
	checker *whitelist.Checker
	opts    Options
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(service Diagnoser, relay Relayer, checker *whitelist.Checker, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultSamples == 0 {
		opts.DefaultSamples = core.DefaultExplanationSamples
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		service: service,
		relay:   relay,
		checker: checker,
		opts:    opts,
		logger:  logger,
	}
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc:  s.checker.IsWhitelisted,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.withRequestLogging(s.withTimeout(s.routes())))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.opts.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server starting", zap.String("address", s.opts.ListenAddress))

	// Start the server in a goroutine
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
