package main

import (
	"context"
	"os/signal"
	"syscall"

	"github/backup/internal/config"
	"github/backup/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting GitHub backup...")

	// Load configuration using viper
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Info("Configuration loaded successfully")

	// Initialize container with all dependencies
	app, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Ctrl+C stops dispatching new transfers; in-flight items resolve
	// with a cancellation detail before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application
	if err := app.Run(ctx); err != nil {
		log.Fatalf("Backup exited with error: %v", err)
	}

	log.Info("Backup finished successfully")
}
