package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
	"github.com/google/uuid"
)

// ErrInvalidEventType is returned when the submitted type is outside
// the whitelist. The event has no side effects in that case.
var ErrInvalidEventType = errors.New("invalid event type")

// Publisher abstracts the broker producer for the events topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Collector validates and canonicalizes submitted events and publishes
// them to the broker. It is stateless; concurrent submissions share
// only the producer connection.
type Collector struct {
	publisher Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewCollector(publisher Publisher, logger *slog.Logger) *Collector {
	return &Collector{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SubmitRequest is the validated ingress input for one event.
type SubmitRequest struct {
	EventType domain.EventType
	Data      json.RawMessage
	Metadata  domain.Metadata
}

// Submit builds the canonical Event and publishes it keyed by userId,
// so all events for one user land on the same partition in order.
// The returned event is only durable once the broker has acknowledged
// the publish; a publish error means nothing was queued.
func (c *Collector) Submit(ctx context.Context, req SubmitRequest) (*domain.Event, error) {
	if !req.EventType.Valid() {
		return nil, ErrInvalidEventType
	}

	event := c.canonicalize(req)
	if err := c.publish(ctx, event); err != nil {
		return nil, err
	}

	c.logger.Info("event published",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"user_id", event.UserID,
	)
	return event, nil
}

// canonicalize assigns eventId and timestamp and derives the identity
// fields. Identity comes from the nested data object only: data.userId
// defaults to "anonymous" and data.sessionId to a fresh id.
func (c *Collector) canonicalize(req SubmitRequest) *domain.Event {
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	var ident struct {
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}
	// Malformed identity fields just fall back to the defaults.
	_ = json.Unmarshal(data, &ident)

	if ident.UserID == "" {
		ident.UserID = "anonymous"
	}
	if ident.SessionID == "" {
		ident.SessionID = c.newID()
	}

	return &domain.Event{
		EventID:   c.newID(),
		EventType: req.EventType,
		UserID:    ident.UserID,
		SessionID: ident.SessionID,
		Timestamp: c.now().UTC(),
		Data:      data,
		Metadata:  req.Metadata,
	}
}

func (c *Collector) publish(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	headers := map[string]string{"eventType": string(event.EventType)}
	if err := c.publisher.Publish(ctx, event.UserID, payload, headers); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}
