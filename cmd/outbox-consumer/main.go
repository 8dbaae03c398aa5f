package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teamfines/platform/internal/guard"
	"github.com/teamfines/platform/internal/infra"
	"github.com/teamfines/platform/internal/outbox"
	"github.com/teamfines/platform/internal/repository"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = infra.NewLogger(os.Stdout, cfg.LogLevel)

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		logger.Warn("kafka disabled; events will be marked published without delivery")
	}

	publisher := outbox.WithBreaker(producer, guard.NewCircuitBreaker(cfg.KafkaFailThreshold, cfg.KafkaResetTimeout))
	relay := outbox.NewRelay(pool, repository.NewOutboxRepository(), publisher, logger, outbox.Config{
		TopicPrefix: cfg.KafkaTopicPrefix,
		Interval:    cfg.OutboxPollInterval,
		BatchSize:   cfg.OutboxBatchSize,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("outbox-consumer shutting down")
		return nil
	})
	return g.Wait()
}
