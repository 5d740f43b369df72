package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzen/internal/amqp"
	"finanzen/internal/config"
	"finanzen/internal/core"
	applog "finanzen/internal/log"
	"finanzen/internal/services"
	"finanzen/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: "catchup-worker",
	})
	applog.SetDefault(logger)

	logger.Info("Starting catchup-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Publish sync messages for materialized entries when AMQP is
	// configured. The sync worker sweeps pending rows either way.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	processor := services.NewCatchUpProcessor(repo, amqpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Catch-up processor configured",
		"interval", cfg.CatchUpInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.CatchUpInterval)
	defer ticker.Stop()

	// Run once on startup so a stopped worker catches up immediately.
	if count, err := processor.Run(ctx, core.Today(time.Now())); err != nil {
		logger.Error("Initial catch-up failed", "error", err)
	} else {
		logger.Info("Initial catch-up complete", "transactions_created", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := processor.Run(ctx, core.Today(now))
				if err != nil {
					logger.Error("Periodic catch-up failed", "error", err)
				} else {
					logger.Info("Periodic catch-up complete",
						"transactions_created", count,
						"next_check", now.Add(cfg.CatchUpInterval).Format("15:04:05"))
				}
			}
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

	logger.Info("Shutting down catchup-worker...")
	cancel()

	// Give the in-flight run a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Catchup-worker shutdown complete")
}
