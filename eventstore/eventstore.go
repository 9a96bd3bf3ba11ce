// Package eventstore lets end-to-end tests look up the events a request
// produced. It tails the eventsource topic in the background and filters the
// retained records by trace id.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
)

// ErrClosed is returned by GetEvents after Close.
var ErrClosed = errors.New("event store closed")

// DefaultSettle is how long GetEvents waits for events to arrive.
const DefaultSettle = 10 * time.Second

// RecordSource feeds the event store. *ConsumerRecordStore implements it.
type RecordSource interface {
	Run(ctx context.Context) error
	Records() []string
}

type EventStore struct {
	newSource func() RecordSource
	settle    time.Duration

	once   sync.Once
	closed atomic.Bool
	source RecordSource
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a store that creates its source on first use.
func New(newSource func() RecordSource, settle time.Duration) *EventStore {
	return &EventStore{newSource: newSource, settle: settle, done: make(chan struct{})}
}

// NewKafka returns a store backed by a ConsumerRecordStore on topic.
func NewKafka(broker, topic string) *EventStore {
	return New(func() RecordSource { return NewConsumerRecordStore(broker, topic) }, DefaultSettle)
}

func (e *EventStore) start() {
	e.once.Do(func() {
		logger.Debug("initialising event store")
		e.source = e.newSource()
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go func() {
			defer close(e.done)
			if err := e.source.Run(ctx); err != nil {
				logger.Error("record source stopped", err)
			}
		}()
	})
}

// GetEvents waits for the settle time and returns every retained record whose
// metadata.traceId equals traceID. The background consumer is started by the
// first caller.
func (e *EventStore) GetEvents(ctx context.Context, traceID string) ([]string, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.start()
	if e.source == nil {
		return nil, ErrClosed
	}

	t := time.NewTimer(e.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}

	records := e.source.Records()
	logger.Info("parsing records", logger.FieldKV("count", len(records)))
	var out []string
	for _, r := range records {
		v, err := Read(r, "$.metadata.traceId")
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && s == traceID {
			out = append(out, r)
		}
	}
	logger.Debug("returning records", logger.FieldKV("trace_id", traceID), logger.FieldKV("count", len(out)))
	return out, nil
}

// Close stops the background consumer. A store that was never used is
// closed without starting one.
func (e *EventStore) Close() {
	e.closed.Store(true)
	e.once.Do(func() { close(e.done) })
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

// Read evaluates a JSON path expression against a JSON record.
func Read(record, path string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(record), &doc); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("eval %s: %w", path, err)
	}
	return v, nil
}

// ReadInt evaluates path and converts a JSON number to int. Numbers with a
// fractional part are rejected.
func ReadInt(record, path string) (int, error) {
	v, err := Read(record, path)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s is %T, not a number", path, v)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is %v, not an integer", path, f)
	}
	return int(f), nil
}
