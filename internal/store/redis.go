package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DeadLetterKey = "dead_letters"

// DeadLetter is a poison or permanently failed message parked for
// operator inspection instead of being silently dropped. Payload is
// the raw consumed bytes and need not be valid JSON; it is base64
// encoded in the stored entry.
type DeadLetter struct {
	EventID  string    `json:"event_id,omitempty"`
	Payload  []byte    `json:"payload"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// RedisStore is the dead-letter sink.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PushDeadLetter appends an entry to the dead-letter list.
func (s *RedisStore) PushDeadLetter(ctx context.Context, dl DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshaling dead letter: %w", err)
	}
	if err := s.client.LPush(ctx, DeadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("pushing dead letter: %w", err)
	}
	return nil
}

// DeadLetterCount returns the number of parked messages.
func (s *RedisStore) DeadLetterCount(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, DeadLetterKey).Result()
}

// RecentDeadLetters returns up to n entries, newest first.
func (s *RedisStore) RecentDeadLetters(ctx context.Context, n int64) ([]DeadLetter, error) {
	raw, err := s.client.LRange(ctx, DeadLetterKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}

	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			return nil, fmt.Errorf("decoding dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	return letters, nil
}
