package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/greg5320/mappool/internal/metrics"
	"github.com/greg5320/mappool/internal/repository"
)

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxRelay polls the event_outbox table and publishes events to Kafka.
type OutboxRelay struct {
	db        repository.DBTX
	outbox    repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(db repository.DBTX, outbox repository.OutboxRepository, publisher Publisher, logger *slog.Logger, interval time.Duration, batchSize int) *OutboxRelay {
	return &OutboxRelay{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil {
				r.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch in id order and marks the published rows.
// It stops at the first publish failure so later events of the same pool
// are never delivered ahead of earlier ones.
func (r *OutboxRelay) PollOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.FetchUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	var publishErr error
	for _, e := range events {
		msg, err := json.Marshal(e)
		if err != nil {
			publishErr = fmt.Errorf("encode event %s: %w", e.EventID, err)
			break
		}
		if err := r.publisher.Publish(ctx, e.Topic(), []byte(e.AggregateID), msg); err != nil {
			metrics.OutboxPublishErrors.Inc()
			r.logger.Error("kafka publish failed", "event_id", e.EventID, "topic", e.Topic(), "error", err)
			publishErr = fmt.Errorf("publish event %s: %w", e.EventID, err)
			break
		}
		published = append(published, e.ID)
	}

	if err := r.outbox.MarkPublished(ctx, r.db, published); err != nil {
		return 0, err
	}
	metrics.OutboxPublished.Add(float64(len(published)))

	r.logger.Debug("outbox poll complete", "published", len(published))
	return len(published), publishErr
}
