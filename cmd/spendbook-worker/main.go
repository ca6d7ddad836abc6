package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendbook/internal/config"
	"spendbook/internal/events"
	applog "spendbook/internal/log"
	"spendbook/internal/repository"
	"spendbook/internal/storage"
	"spendbook/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting spendbook-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		logger.Error("Worker requires an AMQP_URL to consume change events")
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", applog.FieldError, err, applog.FieldPath, cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	// The worker only reads, so it never publishes events or talks to Sheets.
	repo := repository.New(store, nil, nil)
	exportWorker := worker.NewExportWorker(repo, cfg.ExportDir, cfg.ExportFilterDays)

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer eventsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Regenerate snapshots on startup to cover events missed while down.
	logger.Info("Performing startup export check...")
	if err := exportWorker.Regenerate(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
		// Don't exit - continue with normal operation
	}

	go func() {
		if err := eventsClient.Consume(ctx, exportWorker.HandleChangeMessage); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Worker stopped gracefully")
}
