package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
	"github.com/ecomstream/analytics-pipeline/internal/store"
	"github.com/segmentio/kafka-go"
)

// Source abstracts the partitioned consumer-group reader. Within one
// partition messages arrive strictly in order; the processor handles
// them one at a time, which bounds per-user ordering but serializes
// per-user throughput.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Store is the document-store surface the handlers mutate. Every
// method is atomic at single-document granularity only; updates that
// span documents (product + user aggregates for one event) are
// independent writes and can skew on a crash between them.
type Store interface {
	InsertEvent(ctx context.Context, e *domain.Event) error
	IncrementDailyPageViews(ctx context.Context, date string) error
	IncrementDailySales(ctx context.Context, date string, revenue float64, items int) error
	TouchSession(ctx context.Context, e *domain.Event) error
	RecordProductView(ctx context.Context, e *domain.Event, p domain.ProductData) error
	RecordCartAdd(ctx context.Context, e *domain.Event, p domain.ProductData) error
	ProductAggregate(ctx context.Context, productID string) (*domain.ProductAggregate, error)
	SetViewToCartRate(ctx context.Context, productID string, rate float64) error
	AppendViewedProduct(ctx context.Context, e *domain.Event, p domain.ProductData) error
	AppendCartEvent(ctx context.Context, e *domain.Event, p domain.ProductData) error
	RecordPurchase(ctx context.Context, e *domain.Event, o domain.OrderData) error
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertSearch(ctx context.Context, rec *domain.SearchRecord) error
	IncrementSearchTerm(ctx context.Context, term string, at time.Time) error

	IncrementRealTimeBucket(ctx context.Context, metric, minute string, eventType domain.EventType) error
	RealTimeWindow(ctx context.Context, metric, sinceMinute string) ([]domain.RealTimeBucket, error)
}

// DeadLetterSink parks messages that could not be processed.
type DeadLetterSink interface {
	PushDeadLetter(ctx context.Context, dl store.DeadLetter) error
}

// Processor consumes the events topic and drives each message through
// persist → dispatch → aggregate → window update before committing the
// offset. A failure in any step never aborts the loop.
type Processor struct {
	source      Source
	store       Store
	realtime    *RealTimeAggregator
	deadLetters DeadLetterSink
	registry    map[domain.EventType]HandlerFunc
	logger      *slog.Logger

	maxAttempts  int
	retryBackoff time.Duration
}

func New(source Source, st Store, realtime *RealTimeAggregator, deadLetters DeadLetterSink, logger *slog.Logger, maxAttempts int) *Processor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Processor{
		source:       source,
		store:        st,
		realtime:     realtime,
		deadLetters:  deadLetters,
		registry:     newRegistry(st),
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryBackoff: 100 * time.Millisecond,
	}
}

// Run consumes messages until the context is cancelled. Offsets are
// committed after the full pipeline, so delivery is at-least-once:
// a crash mid-pipeline redelivers the message and duplicates its raw
// event and counter increments (documented limitation).
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor started")

	for {
		msg, err := p.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("processor stopping")
				return nil
			}
			return err
		}

		p.Process(ctx, msg)

		if err := p.source.Commit(ctx, msg); err != nil {
			p.logger.Error("failed to commit offset", "error", err, "offset", msg.Offset)
		}
	}
}

// Process runs the full pipeline for one message. Malformed payloads
// are dead-lettered without retry; handler failures get a bounded
// retry and are then dead-lettered. Either way the caller continues to
// the next message.
func (p *Processor) Process(ctx context.Context, msg kafka.Message) {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.Warn("skipping malformed message", "error", err, "partition", msg.Partition, "offset", msg.Offset)
		p.deadLetter(ctx, store.DeadLetter{
			Payload:  msg.Value,
			Error:    err.Error(),
			Attempts: 1,
			FailedAt: time.Now().UTC(),
		})
		return
	}

	p.logger.Info("processing event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"user_id", event.UserID,
	)

	if err := p.store.InsertEvent(ctx, &event); err != nil {
		p.logger.Error("failed to store raw event", "error", err, "event_id", event.EventID)
	}

	if handler, ok := p.registry[event.EventType]; ok {
		if err := p.withRetry(ctx, &event, handler); err != nil {
			p.deadLetter(ctx, store.DeadLetter{
				EventID:  event.EventID,
				Payload:  msg.Value,
				Error:    err.Error(),
				Attempts: p.maxAttempts,
				FailedAt: time.Now().UTC(),
			})
		}
	}

	if err := p.realtime.Record(ctx, &event); err != nil {
		p.logger.Error("failed to update real-time metrics", "error", err, "event_id", event.EventID)
	}
}

// withRetry runs the handler with bounded retries and linear backoff.
func (p *Processor) withRetry(ctx context.Context, e *domain.Event, handler HandlerFunc) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = handler(ctx, e); err == nil {
			return nil
		}
		p.logger.Warn("handler failed",
			"error", err,
			"event_id", e.EventID,
			"event_type", e.EventType,
			"attempt", attempt,
		)
		if attempt < p.maxAttempts {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(p.retryBackoff * time.Duration(attempt)):
			}
		}
	}
	return err
}

func (p *Processor) deadLetter(ctx context.Context, dl store.DeadLetter) {
	if err := p.deadLetters.PushDeadLetter(ctx, dl); err != nil {
		p.logger.Error("failed to push dead letter", "error", err, "event_id", dl.EventID)
		return
	}
	p.logger.Warn("message dead-lettered", "event_id", dl.EventID, "reason", dl.Error)
}
