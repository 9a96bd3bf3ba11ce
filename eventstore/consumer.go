package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
)

const (
	defaultPollTimeout = time.Second
	defaultTTL         = 30 * time.Second
	defaultCleanup     = 30 * time.Second
)

// Reader is the subset of *kafka.Reader the store consumes from.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type expirable struct {
	value    string
	expireAt time.Time
}

// ConsumerRecordStore tails a topic and keeps every record it sees for a
// limited time, keyed by record key.
type ConsumerRecordStore struct {
	reader      Reader
	pollTimeout time.Duration
	ttl         time.Duration
	cleanupStep time.Duration
	now         func() time.Time

	mu          sync.RWMutex
	records     map[string]expirable
	nextCleanup time.Time
}

// GroupID returns a consumer group unique to this run so every run reads the
// topic from the beginning.
func GroupID() string {
	return fmt.Sprintf("eventsource_integrationtest_%d", time.Now().UnixMilli())
}

// NewConsumerRecordStore subscribes to topic on broker starting at the
// earliest offset. Offsets are committed asynchronously.
func NewConsumerRecordStore(broker, topic string) *ConsumerRecordStore {
	logger.Info("connecting to broker", logger.FieldKV("broker", broker), logger.FieldKV("topic", topic))
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        GroupID(),
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        defaultPollTimeout,
	})
	return NewConsumerRecordStoreWithReader(r, time.Now)
}

// NewConsumerRecordStoreWithReader builds a store over an existing reader and
// clock.
func NewConsumerRecordStoreWithReader(r Reader, now func() time.Time) *ConsumerRecordStore {
	return &ConsumerRecordStore{
		reader:      r,
		pollTimeout: defaultPollTimeout,
		ttl:         defaultTTL,
		cleanupStep: defaultCleanup,
		now:         now,
		records:     make(map[string]expirable),
		nextCleanup: now().Add(defaultCleanup),
	}
}

// Run polls until ctx is cancelled, then closes the reader.
func (s *ConsumerRecordStore) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return s.reader.Close()
		}
		pctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
		m, err := s.reader.ReadMessage(pctx)
		cancel()
		switch {
		case err == nil:
			logger.Debug("storing record",
				logger.FieldKV("key", string(m.Key)),
				logger.FieldKV("partition", m.Partition),
				logger.FieldKV("offset", m.Offset))
			s.put(string(m.Key), string(m.Value))
		case ctx.Err() != nil:
			return s.reader.Close()
		case errors.Is(err, context.DeadlineExceeded):
			// nothing arrived within the poll window
		default:
			logger.Error("poll failed", err)
			select {
			case <-ctx.Done():
			case <-time.After(s.pollTimeout):
			}
		}
		s.cleanUp()
	}
}

func (s *ConsumerRecordStore) put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = expirable{value: value, expireAt: s.now().Add(s.ttl)}
}

// Records returns a snapshot of the stored record values.
func (s *ConsumerRecordStore) Records() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.value)
	}
	return out
}

// Len is the number of records currently held.
func (s *ConsumerRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *ConsumerRecordStore) cleanUp() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !now.After(s.nextCleanup) {
		return
	}
	s.nextCleanup = now.Add(s.cleanupStep)
	before := len(s.records)
	for k, e := range s.records {
		if !e.expireAt.After(now) {
			delete(s.records, k)
		}
	}
	logger.Debug("cleaned up record store", logger.FieldKV("before", before), logger.FieldKV("after", len(s.records)))
}
