package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/api"
	"github.com/ecomstream/analytics-pipeline/internal/broker"
	"github.com/ecomstream/analytics-pipeline/internal/config"
	"github.com/ecomstream/analytics-pipeline/internal/ingest"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	// Verify the broker is reachable before serving; a collector that
	// cannot publish must not accept events.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := broker.Ping(ctx, cfg.KafkaBroker); err != nil {
		cancel()
		logger.Error("failed to connect to kafka", "error", err, "broker", cfg.KafkaBroker)
		os.Exit(1)
	}
	cancel()
	logger.Info("connected to kafka", "broker", cfg.KafkaBroker)

	producer := broker.NewProducer(cfg.KafkaBroker, cfg.EventsTopic)
	collector := ingest.NewCollector(producer, logger)
	router := api.NewRouter(collector, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("event collector starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down collector...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Flush in-flight publishes before exiting.
	if err := producer.Close(); err != nil {
		logger.Error("failed to close producer", "error", err)
	}

	logger.Info("collector stopped")
}
