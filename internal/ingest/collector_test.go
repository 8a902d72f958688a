package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
)

type published struct {
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, key string, value []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{key: key, value: value, headers: headers})
	return nil
}

func newTestCollector(t *testing.T) (*Collector, *fakePublisher) {
	t.Helper()

	pub := &fakePublisher{}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCollector(pub, logger), pub
}

func TestSubmit_AllWhitelistedTypes(t *testing.T) {
	c, pub := newTestCollector(t)
	ctx := context.Background()

	seen := make(map[string]bool)

	for _, eventType := range domain.EventTypes {
		event, err := c.Submit(ctx, SubmitRequest{
			EventType: eventType,
			Data:      json.RawMessage(`{"userId":"u1"}`),
		})
		if err != nil {
			t.Fatalf("%s: submit failed: %v", eventType, err)
		}
		if event.EventID == "" {
			t.Fatalf("%s: empty eventId", eventType)
		}
		if seen[event.EventID] {
			t.Fatalf("%s: duplicate eventId %s", eventType, event.EventID)
		}
		seen[event.EventID] = true
	}

	if len(pub.messages) != len(domain.EventTypes) {
		t.Fatalf("expected %d publishes, got %d", len(domain.EventTypes), len(pub.messages))
	}

	// Each published message deserializes back to an Event with the
	// matching type, keyed by userId.
	for i, eventType := range domain.EventTypes {
		var event domain.Event
		if err := json.Unmarshal(pub.messages[i].value, &event); err != nil {
			t.Fatalf("published message does not decode: %v", err)
		}
		if event.EventType != eventType {
			t.Errorf("published type = %q, want %q", event.EventType, eventType)
		}
		if pub.messages[i].key != "u1" {
			t.Errorf("message key = %q, want userId", pub.messages[i].key)
		}
		if pub.messages[i].headers["eventType"] != string(eventType) {
			t.Errorf("eventType header = %q, want %q", pub.messages[i].headers["eventType"], eventType)
		}
	}
}

func TestSubmit_InvalidTypeNoPublish(t *testing.T) {
	c, pub := newTestCollector(t)

	_, err := c.Submit(context.Background(), SubmitRequest{
		EventType: "not_a_real_type",
		Data:      json.RawMessage(`{}`),
	})
	if !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}
	if len(pub.messages) != 0 {
		t.Errorf("rejected submission must not publish, got %d messages", len(pub.messages))
	}
}

func TestSubmit_IdentityFromData(t *testing.T) {
	c, _ := newTestCollector(t)
	ctx := context.Background()

	event, err := c.Submit(ctx, SubmitRequest{
		EventType: domain.EventPageView,
		Data:      json.RawMessage(`{"userId":"u42","sessionId":"s42","page":"/home"}`),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if event.UserID != "u42" || event.SessionID != "s42" {
		t.Errorf("identity should come from data fields, got userId=%q sessionId=%q",
			event.UserID, event.SessionID)
	}
}

func TestSubmit_IdentityDefaults(t *testing.T) {
	c, _ := newTestCollector(t)
	ctx := context.Background()

	event, err := c.Submit(ctx, SubmitRequest{EventType: domain.EventPageView})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if event.UserID != "anonymous" {
		t.Errorf("userId should default to anonymous, got %q", event.UserID)
	}
	if event.SessionID == "" {
		t.Error("sessionId should be generated when absent")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should be assigned at ingress")
	}
	if string(event.Data) != `{}` {
		t.Errorf("absent data should canonicalize to an empty object, got %s", event.Data)
	}
}

func TestSubmit_PublishFailure(t *testing.T) {
	c, pub := newTestCollector(t)
	pub.err = fmt.Errorf("broker unavailable")

	_, err := c.Submit(context.Background(), SubmitRequest{
		EventType: domain.EventPageView,
		Data:      json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected error when broker publish fails")
	}
	if errors.Is(err, ErrInvalidEventType) {
		t.Fatal("publish failure must not look like a validation error")
	}
}

func TestSimulate_GeneratesValidEvents(t *testing.T) {
	c, pub := newTestCollector(t)

	results := c.Simulate(context.Background(), 25, domain.Metadata{UserAgent: "load-test"})

	if len(results) != 25 {
		t.Fatalf("expected 25 simulated events, got %d", len(results))
	}
	if len(pub.messages) != 25 {
		t.Fatalf("expected 25 publishes, got %d", len(pub.messages))
	}

	for i, msg := range pub.messages {
		var event domain.Event
		if err := json.Unmarshal(msg.value, &event); err != nil {
			t.Fatalf("simulated message %d does not decode: %v", i, err)
		}
		if !event.EventType.Valid() {
			t.Errorf("simulated event has invalid type %q", event.EventType)
		}
		if event.UserID == "" || event.SessionID == "" {
			t.Errorf("simulated event missing identity: %+v", event)
		}
		if msg.key != event.UserID {
			t.Errorf("simulated message key %q != userId %q", msg.key, event.UserID)
		}
	}
}

func TestSimulate_FailuresAreSwallowed(t *testing.T) {
	c, pub := newTestCollector(t)
	pub.err = fmt.Errorf("broker down")

	results := c.Simulate(context.Background(), 5, domain.Metadata{})

	if len(results) != 0 {
		t.Errorf("failed publishes must be omitted from the result list, got %d", len(results))
	}
}
