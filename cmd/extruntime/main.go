package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/runtime"
)

func main() {
	cfg, err := runtime.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Stdout carries protocol frames; all logging goes to stderr.
	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	host := runtime.NewHost(os.Stdin, os.Stdout, cfg, logger)
	if err := host.Run(); err != nil {
		logger.Error("Runtime exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
