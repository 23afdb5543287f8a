package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

const (
	defaultMaxSize     = 1000
	defaultFlushSize   = 50
	defaultFlushPeriod = 30 * time.Second
)

// Sink receives a batch of samples. Implemented by database.Database.
type Sink interface {
	WriteActivitySamples(ctx context.Context, samples []database.ActivitySample) error
}

// SampleBuffer accumulates activity samples from all employee trackers and
// flushes them in batches. A failed flush keeps the samples for the next
// cycle; samples are only dropped when the buffer overflows its hard cap.
type SampleBuffer struct {
	sink         Sink
	samples      []database.ActivitySample
	maxSize      int
	flushSize    int
	flushPeriod  time.Duration
	mu           sync.Mutex
	stopChan     chan struct{}
	stopOnce     sync.Once
	flushTrigger chan struct{}
}

// Config holds sample buffer configuration.
type Config struct {
	Sink        Sink
	MaxSize     int
	FlushSize   int
	FlushPeriod time.Duration
}

func NewSampleBuffer(cfg Config) *SampleBuffer {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.FlushSize == 0 {
		cfg.FlushSize = defaultFlushSize
	}
	if cfg.FlushPeriod == 0 {
		cfg.FlushPeriod = defaultFlushPeriod
	}

	return &SampleBuffer{
		sink:         cfg.Sink,
		samples:      make([]database.ActivitySample, 0, cfg.MaxSize),
		maxSize:      cfg.MaxSize,
		flushSize:    cfg.FlushSize,
		flushPeriod:  cfg.FlushPeriod,
		stopChan:     make(chan struct{}),
		flushTrigger: make(chan struct{}, 1),
	}
}

// Start begins periodic flushing. Blocks until ctx is cancelled or Stop is
// called; performs a final flush before returning.
func (sb *SampleBuffer) Start(ctx context.Context) {
	ticker := time.NewTicker(sb.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sb.finalFlush()
			return
		case <-sb.stopChan:
			sb.finalFlush()
			return
		case <-ticker.C:
			sb.Flush(ctx)
		case <-sb.flushTrigger:
			sb.Flush(ctx)
		}
	}
}

// Stop stops the buffer loop.
func (sb *SampleBuffer) Stop() {
	sb.stopOnce.Do(func() { close(sb.stopChan) })
}

// Add appends a sample. Oldest samples are dropped when the hard cap is hit.
func (sb *SampleBuffer) Add(sample database.ActivitySample) {
	sb.mu.Lock()
	sb.samples = append(sb.samples, sample)
	if len(sb.samples) > sb.maxSize {
		sb.samples = sb.samples[len(sb.samples)-sb.maxSize:]
	}
	full := len(sb.samples) >= sb.flushSize
	sb.mu.Unlock()

	if full {
		select {
		case sb.flushTrigger <- struct{}{}:
		default:
		}
	}
}

// Flush writes all buffered samples in one batch. On failure the samples
// stay buffered and are retried on the next cycle.
func (sb *SampleBuffer) Flush(ctx context.Context) error {
	sb.mu.Lock()
	if len(sb.samples) == 0 {
		sb.mu.Unlock()
		return nil
	}
	toSend := make([]database.ActivitySample, len(sb.samples))
	copy(toSend, sb.samples)
	sb.mu.Unlock()

	if err := sb.sink.WriteActivitySamples(ctx, toSend); err != nil {
		zapctx.Warn(ctx, "Failed to flush activity samples, will retry",
			zap.Error(err),
			zap.Int("samples", len(toSend)),
		)
		return err
	}

	// Success - drop the flushed prefix (new samples may have arrived since)
	sb.mu.Lock()
	if len(sb.samples) >= len(toSend) {
		sb.samples = append(sb.samples[:0], sb.samples[len(toSend):]...)
	} else {
		sb.samples = sb.samples[:0]
	}
	sb.mu.Unlock()

	zapctx.Debug(ctx, "Flushed activity samples", zap.Int("samples", len(toSend)))
	return nil
}

// Size returns the current number of buffered samples.
func (sb *SampleBuffer) Size() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.samples)
}

// finalFlush runs once on shutdown with a short deadline so trailing
// samples are not lost.
func (sb *SampleBuffer) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = zapctx.WithLogger(ctx, zap.NewNop())
	sb.Flush(ctx)
}
