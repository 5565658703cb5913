package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level, logger.WithFormat(cfg.Logging.Format))
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application",
		"store", cfg.Ledger.Store,
		"db_path", cfg.Ledger.DBPath,
	)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal(ctx, "Failed to open ledger",
			"error", err,
		)
	}
	log.Info(ctx, "Ledger initialized",
		"worker_count", cfg.Worker.PoolSize,
	)

	srv := a.Server()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "Application started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown in order:
	// 1. Stop accepting new HTTP requests
	log.Info(shutdownCtx, "Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	// 2. Drain audit events, then close the store
	if err := a.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Ledger shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "Application stopped gracefully")
}
