package broker

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Ping dials the broker once to verify it is reachable. Both services
// treat an unreachable broker at startup as fatal.
func Ping(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing kafka broker: %w", err)
	}
	return conn.Close()
}

// Producer wraps a kafka-go Writer for one topic. Messages with the
// same key land on the same partition, so per-key publish order is
// preserved. The writer is safe for concurrent use; its internal
// batching is the only serialization point between requests.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(addr, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(addr),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes one message and blocks until the broker acknowledges
// it. The event is not durably queued until Publish returns nil.
func (p *Producer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes in-flight messages and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer wraps a kafka-go Reader joined to a consumer group. Offsets
// are committed explicitly after a message has been fully processed,
// so delivery is at-least-once.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(addr, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  []string{addr},
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Fetch blocks until the next message for this consumer's partitions
// is available. Messages within a partition arrive strictly in order.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit advances the consumer group offset past msg.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
