package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/broker"
	"github.com/ecomstream/analytics-pipeline/internal/config"
	"github.com/ecomstream/analytics-pipeline/internal/processor"
	"github.com/ecomstream/analytics-pipeline/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoStore, err := store.NewMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mongodb")

	if err := mongoStore.EnsureIndexes(connectCtx); err != nil {
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}
	logger.Info("mongodb indexes created")

	redisStore, err := store.NewRedis(connectCtx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	if err := broker.Ping(connectCtx, cfg.KafkaBroker); err != nil {
		logger.Error("failed to connect to kafka", "error", err, "broker", cfg.KafkaBroker)
		os.Exit(1)
	}
	logger.Info("connected to kafka", "broker", cfg.KafkaBroker)

	consumer := broker.NewConsumer(cfg.KafkaBroker, cfg.EventsTopic, cfg.ConsumerGroup)
	metricsProducer := broker.NewProducer(cfg.KafkaBroker, cfg.MetricsTopic)

	realtime := processor.NewRealTimeAggregator(mongoStore, metricsProducer, logger)
	proc := processor.New(consumer, mongoStore, realtime, redisStore, logger, cfg.MaxRetries)

	runCtx, stop := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- proc.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down processor...")
		stop()
		<-done
	case err := <-done:
		stop()
		if err != nil {
			logger.Error("processor error", "error", err)
		}
	}

	// In-flight consumer messages are not guaranteed to finish; the
	// uncommitted ones will be redelivered to the group.
	if err := consumer.Close(); err != nil {
		logger.Error("failed to close consumer", "error", err)
	}
	if err := metricsProducer.Close(); err != nil {
		logger.Error("failed to close producer", "error", err)
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelClose()
	if err := mongoStore.Close(closeCtx); err != nil {
		logger.Error("failed to close mongodb", "error", err)
	}
	if err := redisStore.Close(); err != nil {
		logger.Error("failed to close redis", "error", err)
	}

	logger.Info("processor stopped")
}
