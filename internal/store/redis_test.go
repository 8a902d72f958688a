package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &RedisStore{client: client}
}

func TestDeadLetter_PushAndCount(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	count, err := s.DeadLetterCount(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty sink, got %d", count)
	}

	for i := 0; i < 3; i++ {
		err := s.PushDeadLetter(ctx, DeadLetter{
			EventID:  "evt-" + string(rune('a'+i)),
			Payload:  []byte(`{"eventType":"page_view"}`),
			Error:    "store write failed",
			Attempts: 3,
			FailedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	count, err = s.DeadLetterCount(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 dead letters, got %d", count)
	}
}

// The canonical dead letter is a consumed message that is not valid
// JSON. The sink must park it verbatim, not reject it.
func TestDeadLetter_NonJSONPayloadParked(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	poison := []byte("not json\x00\xff")
	if err := s.PushDeadLetter(ctx, DeadLetter{
		Payload:  poison,
		Error:    "invalid character 'o' in literal null",
		Attempts: 1,
		FailedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	count, err := s.DeadLetterCount(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("poison payload not parked, count = %d", count)
	}

	letters, err := s.RecentDeadLetters(ctx, 1)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if !bytes.Equal(letters[0].Payload, poison) {
		t.Errorf("payload not preserved verbatim: %q", letters[0].Payload)
	}
}

func TestDeadLetter_RecentNewestFirst(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := s.PushDeadLetter(ctx, DeadLetter{
			EventID:  id,
			Payload:  []byte(`{}`),
			Error:    "boom",
			Attempts: 1,
			FailedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	letters, err := s.RecentDeadLetters(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(letters) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(letters))
	}
	if letters[0].EventID != "evt-3" || letters[1].EventID != "evt-2" {
		t.Errorf("expected newest first, got %s, %s", letters[0].EventID, letters[1].EventID)
	}
}
