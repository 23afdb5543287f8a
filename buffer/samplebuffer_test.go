package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]database.ActivitySample
	err     error
}

func (rs *recordingSink) WriteActivitySamples(ctx context.Context, samples []database.ActivitySample) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.err != nil {
		return rs.err
	}
	batch := make([]database.ActivitySample, len(samples))
	copy(batch, samples)
	rs.batches = append(rs.batches, batch)
	return nil
}

func (rs *recordingSink) setErr(err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.err = err
}

func (rs *recordingSink) total() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, b := range rs.batches {
		n += len(b)
	}
	return n
}

func testCtx(t *testing.T) context.Context {
	return zapctx.WithLogger(context.Background(), zap.NewNop())
}

func sample(employeeID string) database.ActivitySample {
	return database.ActivitySample{
		EmployeeID: employeeID,
		Timestamp:  time.Now(),
		SessionID:  "sess-1",
	}
}

func TestFlushWritesBatch(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink})

	sb.Add(sample("emp-1"))
	sb.Add(sample("emp-2"))
	require.Equal(t, 2, sb.Size())

	require.NoError(t, sb.Flush(testCtx(t)))
	assert.Equal(t, 0, sb.Size())
	assert.Equal(t, 2, sink.total())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink})

	require.NoError(t, sb.Flush(testCtx(t)))
	assert.Empty(t, sink.batches)
}

func TestFlushFailureRetainsSamples(t *testing.T) {
	sink := &recordingSink{}
	sink.setErr(errors.New("clickhouse down"))
	sb := NewSampleBuffer(Config{Sink: sink})

	sb.Add(sample("emp-1"))
	require.Error(t, sb.Flush(testCtx(t)))
	assert.Equal(t, 1, sb.Size(), "failed flush keeps samples for retry")

	sink.setErr(nil)
	require.NoError(t, sb.Flush(testCtx(t)))
	assert.Equal(t, 0, sb.Size())
	assert.Equal(t, 1, sink.total())
}

func TestOverflowDropsOldest(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink, MaxSize: 3, FlushSize: 100})

	for i := 0; i < 5; i++ {
		sb.Add(sample("emp-1"))
	}
	assert.Equal(t, 3, sb.Size())
}

func TestStartFlushesPeriodically(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink, FlushPeriod: 10 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		sb.Start(testCtx(t))
		close(done)
	}()

	sb.Add(sample("emp-1"))
	assert.Eventually(t, func() bool { return sink.total() == 1 },
		time.Second, 5*time.Millisecond)

	sb.Stop()
	<-done
}

func TestStopFlushesRemaining(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink, FlushPeriod: time.Hour})

	done := make(chan struct{})
	go func() {
		sb.Start(testCtx(t))
		close(done)
	}()

	sb.Add(sample("emp-1"))
	sb.Stop()
	<-done

	assert.Equal(t, 1, sink.total(), "final flush drains the buffer on stop")
}

func TestFlushSizeTriggersEarlyFlush(t *testing.T) {
	sink := &recordingSink{}
	sb := NewSampleBuffer(Config{Sink: sink, FlushSize: 2, FlushPeriod: time.Hour})

	done := make(chan struct{})
	go func() {
		sb.Start(testCtx(t))
		close(done)
	}()

	sb.Add(sample("emp-1"))
	sb.Add(sample("emp-2"))

	assert.Eventually(t, func() bool { return sink.total() == 2 },
		time.Second, 5*time.Millisecond)

	sb.Stop()
	<-done
}
