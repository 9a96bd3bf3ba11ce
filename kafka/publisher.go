package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/metrics"
	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

// Sender delivers one keyed record. *Producer implements it.
type Sender interface {
	Send(ctx context.Context, key string, value []byte) error
}

// DeadLetterWriter receives records that failed to publish.
type DeadLetterWriter interface {
	Write(ctx context.Context, key string, value []byte, reason string) error
}

// Subscriber is told about every event the broker acknowledged.
type Subscriber interface {
	Broadcast(msg interface{})
}

// EventValidator rejects malformed events before they reach the topic.
type EventValidator interface {
	Validate(doc interface{}) error
}

var errQueueFull = errors.New("publish queue full")

type job struct {
	ctx   context.Context
	txID  uuid.UUID
	seq   int
	trace string
}

// QueueSize bounds the events waiting for a worker.
const QueueSize = 1024

// Publisher turns (transaction, sequence) pairs into events and publishes them
// from a fixed pool of worker goroutines. Failures are logged and swallowed;
// the caller never waits for the broker. When the queue is full the event is
// dropped and dead-lettered.
type Publisher struct {
	sender       Sender
	dlq          DeadLetterWriter
	validator    EventValidator
	paddingBytes int

	jobs chan job
	wg   sync.WaitGroup

	// mu guards closed and the jobs channel; it is never held across a
	// blocking operation.
	mu     sync.RWMutex
	closed bool

	subMu sync.RWMutex
	subs  []Subscriber
}

// PublisherOption configures optional Publisher collaborators.
type PublisherOption func(*Publisher)

func WithDeadLetter(d DeadLetterWriter) PublisherOption {
	return func(p *Publisher) { p.dlq = d }
}

func WithValidator(v EventValidator) PublisherOption {
	return func(p *Publisher) { p.validator = v }
}

func NewPublisher(s Sender, workers, paddingBytes int, opts ...PublisherOption) *Publisher {
	if workers < 1 {
		workers = 1
	}
	p := &Publisher{
		sender:       s,
		paddingBytes: paddingBytes,
		jobs:         make(chan job, QueueSize),
	}
	for _, o := range opts {
		o(p)
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Subscribe registers s for acknowledged events.
func (p *Publisher) Subscribe(s Subscriber) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subs = append(p.subs, s)
}

// PublishAsync queues one event. The trace of ctx is captured now; its
// cancellation is not, so a finished request does not abort its events.
func (p *Publisher) PublishAsync(ctx context.Context, txID uuid.UUID, seq int) {
	j := job{ctx: tracing.Detach(ctx), txID: txID, seq: seq, trace: tracing.TraceID(ctx)}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		logger.Warn("publisher closed, dropping event", nil,
			logger.FieldKV("transaction_id", txID.String()), logger.FieldKV("sequence_id", seq))
		return
	}
	select {
	case p.jobs <- j:
	default:
		metrics.IncPublishFailure(kindOf(seq), "queue_full")
		logger.Warn("publish queue full, dropping event", nil,
			logger.FieldKV("transaction_id", txID.String()), logger.FieldKV("sequence_id", seq))
		if p.dlq != nil {
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.deadLetterDropped(j)
			}()
		}
	}
}

// Publish sends one event on the calling goroutine and reports the outcome.
func (p *Publisher) Publish(ctx context.Context, txID uuid.UUID, seq int) error {
	return p.publish(job{ctx: ctx, txID: txID, seq: seq, trace: tracing.TraceID(ctx)})
}

// Close stops accepting events and waits for queued ones to finish.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		_ = p.publish(j)
	}
}

func kindOf(seq int) string {
	if seq == models.NoiseSequenceID {
		return metrics.KindNoise
	}
	return metrics.KindTransaction
}

// deadLetterDropped writes an event that never reached a worker.
func (p *Publisher) deadLetterDropped(j job) {
	traceID := j.trace
	if traceID == "" {
		traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	value, err := json.Marshal(models.NewEvent(traceID, j.txID, j.seq, p.paddingBytes))
	if err != nil {
		logger.Warn("unable to serialize event", err, logger.FieldKV("transaction_id", j.txID.String()))
		return
	}
	p.deadLetter(j.ctx, uuid.NewString(), value, errQueueFull)
}

func (p *Publisher) publish(j job) (err error) {
	kind := kindOf(j.seq)
	ctx, span := tracing.Tracer().Start(j.ctx, "publish", trace.WithAttributes(
		attribute.String("transaction.id", j.txID.String()),
		attribute.Int("sequence.id", j.seq),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	traceID := j.trace
	if traceID == "" {
		traceID = tracing.TraceID(ctx)
	}
	if traceID == "" {
		traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	logger.Info("publishing event",
		logger.FieldKV("transaction_id", j.txID.String()),
		logger.FieldKV("sequence_id", j.seq),
		logger.FieldKV("trace_id", traceID))

	ev := models.NewEvent(traceID, j.txID, j.seq, p.paddingBytes)
	value, err := json.Marshal(ev)
	if err != nil {
		metrics.IncPublishFailure(kind, "serialize")
		logger.Warn("unable to serialize event", err, logger.FieldKV("transaction_id", j.txID.String()))
		return err
	}
	if p.validator != nil {
		if err = p.validator.Validate(value); err != nil {
			metrics.IncPublishFailure(kind, "invalid")
			logger.Warn("event failed schema validation", err, logger.FieldKV("transaction_id", j.txID.String()))
			return err
		}
	}

	key := uuid.NewString()
	start := time.Now()
	if err = p.sender.Send(ctx, key, value); err != nil {
		metrics.IncPublishFailure(kind, "send")
		logger.Warn("unable to publish event", err,
			logger.FieldKV("key", key),
			logger.FieldKV("transaction_id", j.txID.String()),
			logger.FieldKV("sequence_id", j.seq))
		p.deadLetter(ctx, key, value, err)
		return err
	}
	metrics.ObservePublishSeconds(time.Since(start).Seconds())
	metrics.IncPublished(kind)
	logger.Debug("event published", logger.FieldKV("key", key), logger.FieldKV("sequence_id", j.seq))

	p.subMu.RLock()
	subs := p.subs
	p.subMu.RUnlock()
	for _, s := range subs {
		s.Broadcast(ev)
	}
	return nil
}

func (p *Publisher) deadLetter(ctx context.Context, key string, value []byte, cause error) {
	if p.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.dlq.Write(ctx, key, value, cause.Error()); err != nil {
		logger.Error("dead-letter write failed", err, logger.FieldKV("key", key))
	}
}
