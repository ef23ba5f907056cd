package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invoicely-dev/invoicely/internal/config"
	"github.com/invoicely-dev/invoicely/internal/logger"
	"github.com/invoicely-dev/invoicely/internal/sandbox"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The CLI default of warn hides request logs, which are the point of the sandbox
	level := cfg.Logging.Level
	if os.Getenv("LOG_LEVEL") == "" {
		level = "info"
	}

	// Initialize logger
	logger.Init(level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := sandbox.New(sandbox.Config{
		JWTSecret:   cfg.Sandbox.JWTSecret,
		DatabaseURL: cfg.Sandbox.DatabaseURL,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sandbox")
	}

	log.Info().Str("version", version).Msg("Starting invoicely sandbox API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, cfg.Sandbox.Address); err != nil {
		log.Fatal().Err(err).Msg("Sandbox failed")
	}
}
