package monitoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/buffer"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, cfg EngineConfig, sink EvidenceSink) (*Engine, *AlertFactory) {
	t.Helper()
	samples := buffer.NewSampleBuffer(buffer.Config{
		Sink: sinkFunc(func([]database.ActivitySample) error { return nil }),
	})
	capturer := &frameCapturer{frames: [][]byte{[]byte("frame-1"), []byte("frame-2")}}
	return testEngineWith(t, cfg, sink, capturer, samples)
}

func testEngineWith(t *testing.T, cfg EngineConfig, sink EvidenceSink, capturer Capturer, samples *buffer.SampleBuffer) (*Engine, *AlertFactory) {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour // polls driven by explicit events in tests
	}
	if cfg.Activity.SampleInterval == 0 {
		cfg.Activity.SampleInterval = time.Hour
	}

	alerts := NewAlertFactory(5*time.Minute, nil, nil)
	whitelist := NewWhitelist([]*WhitelistEntry{{Domain: "github.com"}})

	e := NewEngine(cfg, Deps{
		Whitelist:  whitelist,
		Classifier: NewClassifier(nil, nil, nil, ClassifierThresholds{}, nil),
		Capturer:   capturer,
		Evidence:   sink,
		Alerts:     alerts,
		Samples:    samples,
		Backend:    NullBackend{},
	})
	return e, alerts
}

// gateCapturer blocks inside Capture until released, keeping the actor
// goroutine busy so events pile up behind it.
type gateCapturer struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateCapturer) Capture(ctx context.Context) ([]byte, error) {
	g.entered <- struct{}{}
	<-g.release
	return []byte("frame-1"), nil
}

func TestEngineStartStop(t *testing.T) {
	ctx := testCtx(t)
	e, _ := testEngine(t, EngineConfig{}, &memorySink{})

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	assert.ErrorIs(t, e.Start(ctx, "emp-1", "sess-2", ModeIntelligent), ErrAlreadyMonitored)
	assert.Equal(t, []string{"emp-1"}, e.ActiveEmployees())

	status, err := e.Status("emp-1")
	require.NoError(t, err)
	assert.True(t, status.Active)

	require.NoError(t, e.Stop(ctx, "emp-1"))
	assert.ErrorIs(t, e.Stop(ctx, "emp-1"), ErrNotMonitored)
	assert.Empty(t, e.ActiveEmployees())

	_, err = e.Status("emp-1")
	assert.ErrorIs(t, err, ErrNotMonitored)
}

func TestEngineLegacyModeDisabled(t *testing.T) {
	ctx := testCtx(t)
	e, _ := testEngine(t, EngineConfig{}, &memorySink{})

	assert.Error(t, e.Start(ctx, "emp-1", "sess-1", ModeLegacy))
}

func TestEngineDeniedChangeOpensViolation(t *testing.T) {
	ctx := testCtx(t)
	sink := &memorySink{}
	e, alerts := testEngine(t, EngineConfig{}, sink)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	defer e.StopAll(ctx)

	require.NoError(t, e.HandleApplicationChange("emp-1", AppEvent{
		Name: "chrome", URL: "https://facebook.com/feed", Title: "Facebook",
	}))

	require.Eventually(t, func() bool { return sink.count() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, alerts.ActiveCount("emp-1"))

	stats, err := e.Stats("emp-1")
	require.NoError(t, err)
	assert.True(t, stats.CurrentViolationActive)
	assert.Equal(t, 1, stats.TotalViolationSessions)
}

func TestEngineAuthorizedChangeClosesViolation(t *testing.T) {
	ctx := testCtx(t)
	sink := &memorySink{}
	e, _ := testEngine(t, EngineConfig{}, sink)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	defer e.StopAll(ctx)

	require.NoError(t, e.HandleApplicationChange("emp-1", AppEvent{
		Name: "chrome", URL: "https://facebook.com/feed", Title: "Facebook",
	}))
	require.NoError(t, e.HandleApplicationChange("emp-1", AppEvent{
		Name: "chrome", URL: "https://github.com/acme", Title: "GitHub",
	}))

	require.Eventually(t, func() bool {
		stats, err := e.Stats("emp-1")
		return err == nil && !stats.CurrentViolationActive
	}, time.Second, 5*time.Millisecond)

	stats, _ := e.Stats("emp-1")
	assert.Equal(t, 1, stats.TotalViolationSessions)
}

func TestEngineLegacyModeAlertsWithoutCapture(t *testing.T) {
	ctx := testCtx(t)
	sink := &memorySink{}
	e, alerts := testEngine(t, EngineConfig{LegacyEnabled: true}, sink)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeLegacy))
	defer e.StopAll(ctx)

	require.NoError(t, e.HandleApplicationChange("emp-1", AppEvent{
		Name: "chrome", URL: "https://facebook.com/feed", Title: "Facebook",
	}))

	require.Eventually(t, func() bool { return alerts.ActiveCount("emp-1") == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.count(), "legacy mode never captures evidence")
}

func TestEngineRecordInput(t *testing.T) {
	ctx := testCtx(t)
	e, _ := testEngine(t, EngineConfig{}, &memorySink{})

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	defer e.StopAll(ctx)

	require.NoError(t, e.RecordInput("emp-1", 42, 60))
	assert.ErrorIs(t, e.RecordInput("emp-2", 1, 0), ErrNotMonitored)

	require.Eventually(t, func() bool {
		status, err := e.Status("emp-1")
		return err == nil && !status.IsIdle
	}, time.Second, 5*time.Millisecond)
}

func TestStatusDuringStopDoesNotBlock(t *testing.T) {
	ctx := testCtx(t)
	gate := &gateCapturer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	samples := buffer.NewSampleBuffer(buffer.Config{
		Sink: sinkFunc(func([]database.ActivitySample) error { return nil }),
	})
	e, _ := testEngineWith(t, EngineConfig{}, &memorySink{}, gate, samples)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	require.NoError(t, e.HandleApplicationChange("emp-1", AppEvent{
		Name: "chrome", URL: "https://facebook.com/feed",
	}))
	<-gate.entered // actor is busy inside the capture

	statusErr := make(chan error, 1)
	go func() {
		_, err := e.Status("emp-1")
		statusErr <- err
	}()

	stopErr := make(chan error, 1)
	go func() { stopErr <- e.Stop(ctx, "emp-1") }()

	time.Sleep(20 * time.Millisecond) // let both calls queue behind the busy actor
	close(gate.release)

	select {
	case err := <-statusErr:
		// Answered before the actor exited, or reported as gone; never hung.
		if err != nil {
			assert.ErrorIs(t, err, ErrNotMonitored)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Status call blocked across Stop")
	}
	require.NoError(t, <-stopErr)
}

func TestStopFlushesBufferedSamples(t *testing.T) {
	ctx := testCtx(t)
	var mu sync.Mutex
	written := 0
	samples := buffer.NewSampleBuffer(buffer.Config{
		Sink: sinkFunc(func(batch []database.ActivitySample) error {
			mu.Lock()
			defer mu.Unlock()
			written += len(batch)
			return nil
		}),
	})
	e, _ := testEngineWith(t, EngineConfig{}, &memorySink{},
		&frameCapturer{frames: [][]byte{[]byte("frame-1")}}, samples)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	require.NoError(t, e.RecordInput("emp-1", 42, 60))
	require.NoError(t, e.Stop(ctx, "emp-1"))

	// No ticker is running here: only the shutdown flush can have written.
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, written, 1, "stop flushes the final sample synchronously")
}

func TestEngineStopAllClosesSessions(t *testing.T) {
	ctx := testCtx(t)
	sink := &memorySink{}
	e, _ := testEngine(t, EngineConfig{}, sink)

	require.NoError(t, e.Start(ctx, "emp-1", "sess-1", ModeIntelligent))
	require.NoError(t, e.Start(ctx, "emp-2", "sess-2", ModeIntelligent))
	require.Len(t, e.ActiveEmployees(), 2)

	e.StopAll(ctx)
	assert.Empty(t, e.ActiveEmployees())
}
