package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/greg5320/mappool/internal/infra"
	"github.com/greg5320/mappool/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
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
	// A disabled producer would mark rows published without sending them.
	if !cfg.KafkaEnabled {
		return errors.New("KAFKA_ENABLED must be true to run the outbox relay")
	}

	db, err := infra.NewPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.Brokers(), cfg.KafkaEnabled, logger)
	defer producer.Close()

	relay := infra.NewOutboxRelay(db, repository.NewOutboxRepository(), producer, logger,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	relay.Run(ctx)
	return nil
}
