package noise

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

type recorder struct {
	mu     sync.Mutex
	traces []string
	txs    []uuid.UUID
	seqs   []int
}

func (r *recorder) PublishAsync(ctx context.Context, txID uuid.UUID, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, tracing.TraceID(ctx))
	r.txs = append(r.txs, txID)
	r.seqs = append(r.seqs, seq)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seqs)
}

func TestMain(m *testing.M) {
	tp := tracing.Init("noise-test")
	defer func() { _ = tp.Shutdown(context.Background()) }()
	m.Run()
}

func TestMakeSomeNoiseUsesFreshTraceEachTime(t *testing.T) {
	rec := &recorder{}
	m := NewMaker(rec, time.Second)

	parent, span := tracing.Tracer().Start(context.Background(), "scheduler")
	defer span.End()
	m.MakeSomeNoise(parent)
	m.MakeSomeNoise(parent)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, []int{models.NoiseSequenceID, models.NoiseSequenceID}, rec.seqs)
	assert.NotEqual(t, rec.traces[0], rec.traces[1])
	assert.NotEqual(t, tracing.TraceID(parent), rec.traces[0])
	assert.NotEqual(t, rec.txs[0], rec.txs[1])
}

func TestRunTicksUntilCancelled(t *testing.T) {
	rec := &recorder{}
	m := NewMaker(rec, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	rec := &recorder{}
	NewMaker(rec, 0).Run(context.Background())
	assert.Zero(t, rec.count())
}
