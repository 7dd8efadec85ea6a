package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go-wsi-cohort/internal/config"
	"go-wsi-cohort/internal/container"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present (ignore errors)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("WSICOHORT_CONFIG"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize dependency injection container
	c, err := container.NewContainer(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transport.Serve(ctx, c.Handler(), cfg); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
