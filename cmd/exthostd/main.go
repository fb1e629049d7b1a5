package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	root := flag.String("extensions-root", "", "extensions directory (overrides EXTENSIONS_ROOT)")
	runtimeBin := flag.String("runtime", "", "extension runtime binary (overrides RUNTIME_BIN)")
	dev := flag.Bool("dev", false, "development mode: colored logs, debug level")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Extensions.Root = *root
	}
	if *runtimeBin != "" {
		cfg.Runtime.Binary = *runtimeBin
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
