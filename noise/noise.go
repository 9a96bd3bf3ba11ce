// Package noise publishes a stray event on a fixed interval so that the topic
// always carries records unrelated to any test request.
package noise

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/metrics"
	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

type Publisher interface {
	PublishAsync(ctx context.Context, txID uuid.UUID, seq int)
}

type Maker struct {
	publisher Publisher
	interval  time.Duration
}

func NewMaker(p Publisher, interval time.Duration) *Maker {
	return &Maker{publisher: p, interval: interval}
}

// Run ticks until ctx is cancelled. A non-positive interval disables the
// maker and Run returns immediately.
func (m *Maker) Run(ctx context.Context) {
	if m.interval <= 0 {
		logger.Info("noise maker disabled")
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.MakeSomeNoise(ctx)
		}
	}
}

// MakeSomeNoise publishes one noise event under a brand new trace.
func (m *Maker) MakeSomeNoise(ctx context.Context) {
	logger.Debug("making some noise")
	metrics.IncNoiseTick()
	ctx, span := tracing.NewRoot(ctx, "noise")
	defer span.End()
	m.publisher.PublishAsync(ctx, uuid.New(), models.NoiseSequenceID)
}
