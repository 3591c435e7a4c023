package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/teethanalyzer/internal/di"
	"github.com/mikey/teethanalyzer/internal/ports"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Diagnosis failed: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, frontend ports.Frontend) error {
	defer logger.Sync()

	// Cancel the diagnosis on interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Interrupted, cancelling...")
		_ = frontend.Stop()
	}()

	return frontend.Start()
}
