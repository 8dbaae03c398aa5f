// Package outbox relays committed ledger events from event_outbox to Kafka.
// Delivery is at-least-once; the relay never writes ledger state.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
)

// Publisher sends one message. infra.KafkaProducer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls unpublished outbox rows and publishes them in sequence order.
type Relay struct {
	db          repository.DBTX
	repo        repository.OutboxRepository
	publisher   Publisher
	logger      *slog.Logger
	topicPrefix string
	interval    time.Duration
	batchSize   int
}

// Config tunes a Relay.
type Config struct {
	TopicPrefix string
	Interval    time.Duration
	BatchSize   int
}

// NewRelay creates a relay.
func NewRelay(db repository.DBTX, repo repository.OutboxRepository, publisher Publisher, logger *slog.Logger, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "teamfines"
	}
	return &Relay{
		db:          db,
		repo:        repo,
		publisher:   publisher,
		logger:      logger,
		topicPrefix: cfg.TopicPrefix,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
	}
}

// Run polls until ctx is cancelled. Poll errors are logged, not returned.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil {
				r.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch and returns how many rows were marked published.
// It stops at the first publish failure so a partition never sees events out of order;
// the failed row and everything after it are retried on the next poll.
func (r *Relay) PollOnce(ctx context.Context) (int, error) {
	rows, err := r.repo.FetchUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(rows))
	var publishErr error
	for _, row := range rows {
		msg, err := Envelope(row)
		if err != nil {
			publishErr = err
			break
		}
		topic := Topic(r.topicPrefix, row)
		if err := r.publisher.Publish(ctx, topic, []byte(row.PartitionKey), msg); err != nil {
			r.logger.Error("kafka publish failed", "seq_id", row.SeqID, "event_id", row.EventID, "topic", topic, "error", err)
			publishErr = fmt.Errorf("publish seq %d: %w", row.SeqID, err)
			break
		}
		ids = append(ids, row.SeqID)
	}

	if len(ids) > 0 {
		if err := r.repo.MarkPublished(ctx, r.db, ids); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
		r.logger.Debug("processed outbox batch", "count", len(ids))
	}
	return len(ids), publishErr
}

// Topic is <prefix>.<aggregate>.<event>, e.g. teamfines.fine.issued.
func Topic(prefix string, row domain.OutboxRow) string {
	event := string(row.EventType)
	if i := strings.LastIndex(event, "."); i >= 0 {
		event = event[i+1:]
	}
	return prefix + "." + string(row.AggregateType) + "." + event
}

// Envelope is the Kafka message value for a row.
func Envelope(row domain.OutboxRow) ([]byte, error) {
	msg, err := json.Marshal(map[string]any{
		"event_id":        row.EventID,
		"organization_id": row.OrganizationID,
		"aggregate_type":  row.AggregateType,
		"aggregate_id":    row.AggregateID,
		"event_type":      row.EventType,
		"payload":         row.Payload,
		"occurred_at":     row.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope seq %d: %w", row.SeqID, err)
	}
	return msg, nil
}
