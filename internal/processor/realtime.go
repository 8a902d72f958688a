package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
)

const (
	// MetricEventsPerMinute is the single real-time metric name.
	MetricEventsPerMinute = "events_per_minute"

	// SnapshotKey is the fixed message key on the metrics topic, so
	// downstream consumers see a replace-on-read stream: the latest
	// message under the key is authoritative.
	SnapshotKey = "real-time-metrics"
)

// WindowStore is the bucket surface of the document store.
type WindowStore interface {
	IncrementRealTimeBucket(ctx context.Context, metric, minute string, eventType domain.EventType) error
	RealTimeWindow(ctx context.Context, metric, sinceMinute string) ([]domain.RealTimeBucket, error)
}

// MetricsPublisher abstracts the producer for the metrics topic.
type MetricsPublisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Snapshot is the full rolling window published after every event.
type Snapshot struct {
	Timestamp time.Time               `json:"timestamp"`
	Metrics   []domain.RealTimeBucket `json:"metrics"`
}

// RealTimeAggregator maintains minute buckets and republishes the
// whole 60-minute window as one snapshot per processed event. Full
// snapshots keep downstream consumers stateless at the cost of
// O(window) work per event.
type RealTimeAggregator struct {
	store     WindowStore
	publisher MetricsPublisher
	logger    *slog.Logger

	window time.Duration
	now    func() time.Time
}

func NewRealTimeAggregator(st WindowStore, publisher MetricsPublisher, logger *slog.Logger) *RealTimeAggregator {
	return &RealTimeAggregator{
		store:     st,
		publisher: publisher,
		logger:    logger,
		window:    60 * time.Minute,
		now:       time.Now,
	}
}

// Record bumps the current minute's bucket for both total and the
// event's type, rebuilds the rolling window, and publishes it.
func (a *RealTimeAggregator) Record(ctx context.Context, e *domain.Event) error {
	now := a.now().UTC()
	minute := domain.MinuteKey(now)

	if err := a.store.IncrementRealTimeBucket(ctx, MetricEventsPerMinute, minute, e.EventType); err != nil {
		return fmt.Errorf("incrementing bucket: %w", err)
	}

	since := domain.MinuteKey(now.Add(-a.window))
	buckets, err := a.store.RealTimeWindow(ctx, MetricEventsPerMinute, since)
	if err != nil {
		return fmt.Errorf("querying window: %w", err)
	}

	payload, err := json.Marshal(Snapshot{Timestamp: now, Metrics: buckets})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := a.publisher.Publish(ctx, SnapshotKey, payload, nil); err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	return nil
}
