package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendbook/internal/config"
	"spendbook/internal/events"
	"spendbook/internal/export"
	apphttp "spendbook/internal/http"
	applog "spendbook/internal/log"
	"spendbook/internal/repository"
	"spendbook/internal/state"
	"spendbook/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", applog.FieldError, err, applog.FieldPath, cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	// AMQP is optional. Without it the server still works, only the export
	// worker stops receiving change events.
	var eventsClient *events.Client
	if cfg.EventsEnabled() {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", applog.FieldError, err)
		} else {
			defer eventsClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("Change events disabled - no AMQP_URL provided")
	}

	var sheetsClient *export.SheetsClient
	if cfg.SheetsEnabled() {
		sheetsClient, err = export.NewSheetsClient(context.Background(), export.SheetsConfig{
			SpreadsheetID:   cfg.SheetsSpreadsheetID,
			SheetName:       cfg.SheetsSheetName,
			CredentialsJSON: cfg.SheetsCredentialsJSON,
			CredentialsFile: cfg.SheetsCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no SHEETS_SPREADSHEET_ID provided")
	}

	repo := repository.New(store, eventsClient, sheetsClient)
	controller := state.NewController(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	controller.Start(ctx)

	srv := apphttp.NewServer(":"+cfg.Port, controller)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting spendbook server", "port", cfg.Port, applog.FieldPath, cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
