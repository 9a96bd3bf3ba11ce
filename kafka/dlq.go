package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/metrics"
)

// DeadLetter parks records that could not be published, tagging each with
// the failure reason.
type DeadLetter struct {
	w     MessageWriter
	topic string
}

func NewDeadLetter(broker, topic string) *DeadLetter {
	return NewDeadLetterWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}, topic)
}

func NewDeadLetterWithWriter(w MessageWriter, topic string) *DeadLetter {
	return &DeadLetter{w: w, topic: topic}
}

func (d *DeadLetter) Write(ctx context.Context, key string, value []byte, reason string) error {
	err := d.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(reason)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", d.topic, err)
	}
	metrics.IncDeadLettered()
	logger.Info("record dead-lettered", logger.FieldKV("topic", d.topic), logger.FieldKV("key", key), logger.FieldKV("reason", reason))
	return nil
}

func (d *DeadLetter) Close() error { return d.w.Close() }
