package kafka

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
)

// MessageWriter is the subset of *kafka.Writer the producers rely on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RandomPartition spreads records uniformly over the first Max partitions the
// broker reports, or over all of them when Max is zero.
type RandomPartition struct {
	Max int
}

func (b *RandomPartition) Balance(_ kafka.Message, partitions ...int) int {
	n := len(partitions)
	if b.Max > 0 && b.Max < n {
		n = b.Max
	}
	return partitions[rand.IntN(n)]
}

// Producer writes keyed records to a single topic and waits for the broker
// acknowledgement.
type Producer struct {
	w       MessageWriter
	topic   string
	timeout time.Duration
}

// NewProducer creates a producer backed by a kafka-go writer.
func NewProducer(broker, topic string, partitions int, timeout time.Duration) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &RandomPartition{Max: partitions},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
	}
	return NewProducerWithWriter(w, topic, timeout)
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, topic string, timeout time.Duration) *Producer {
	return &Producer{w: w, topic: topic, timeout: timeout}
}

func (p *Producer) Topic() string { return p.topic }

// Send writes one record. The write is bounded by the producer timeout even
// when ctx has no deadline.
func (p *Producer) Send(ctx context.Context, key string, value []byte) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	logger.Debug("writing record", logger.FieldKV("topic", p.topic), logger.FieldKV("key", key), logger.FieldKV("bytes", len(value)))
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Ping dials the broker and reads the topic metadata, returning the number of
// partitions.
func Ping(ctx context.Context, broker, topic string) (int, error) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", broker, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	parts, err := conn.ReadPartitions(topic)
	if err != nil {
		return 0, fmt.Errorf("read partitions of %s: %w", topic, err)
	}
	return len(parts), nil
}
