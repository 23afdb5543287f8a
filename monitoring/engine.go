package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/buffer"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyMonitored is returned by Start for an employee with an
	// active monitoring session.
	ErrAlreadyMonitored = errors.New("employee already monitored")
	// ErrNotMonitored is returned for operations on an employee without an
	// active monitoring session.
	ErrNotMonitored = errors.New("employee not monitored")
)

// EngineConfig carries the tunables for every per-employee pipeline.
type EngineConfig struct {
	PollInterval  time.Duration
	Activity      ActivityConfig
	Observer      ObserverConfig
	Violation     ViolationConfig
	LegacyEnabled bool
}

// Deps are the engine's collaborators, built once in the server.
type Deps struct {
	Whitelist  *Whitelist
	Classifier *Classifier
	Capturer   Capturer
	Evidence   EvidenceSink
	Hashes     HashSource
	Alerts     *AlertFactory
	Samples    *buffer.SampleBuffer
	Metrics    *Metrics
	Backend    Backend
}

// Engine supervises one actor goroutine per monitored employee. Each actor
// owns its employee's trackers outright, so every decision for an employee
// is made on a single goroutine in event order.
type Engine struct {
	cfg  EngineConfig
	deps Deps

	mu     sync.Mutex
	actors map[string]*actor
	wg     sync.WaitGroup
}

func NewEngine(cfg EngineConfig, deps Deps) *Engine {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 6 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Backend == nil {
		deps.Backend = NewBackend()
	}
	if deps.Capturer == nil {
		deps.Capturer = PlaceholderCapturer{}
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		actors: make(map[string]*actor),
	}
}

// Start begins monitoring an employee. The mode is fixed for the lifetime
// of the session; legacy mode must be enabled in config.
func (e *Engine) Start(ctx context.Context, employeeID, sessionID string, mode Mode) error {
	if mode == "" {
		mode = ModeIntelligent
	}
	if mode == ModeLegacy && !e.cfg.LegacyEnabled {
		return fmt.Errorf("legacy mode is disabled")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.actors[employeeID]; ok {
		return ErrAlreadyMonitored
	}

	a := e.newActor(employeeID, sessionID, mode)
	e.actors[employeeID] = a

	// The actor outlives the request that started it; only the logger is
	// carried over.
	actorCtx := zapctx.WithLogger(context.Background(), zapctx.Logger(ctx))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		a.run(actorCtx)
	}()

	zapctx.Info(ctx, "Monitoring started",
		zap.String("employee_id", employeeID),
		zap.String("session_id", sessionID),
		zap.String("mode", string(mode)),
	)
	return nil
}

// Stop ends monitoring for one employee, closing any open violation session.
func (e *Engine) Stop(ctx context.Context, employeeID string) error {
	e.mu.Lock()
	a, ok := e.actors[employeeID]
	if ok {
		delete(e.actors, employeeID)
	}
	e.mu.Unlock()

	if !ok {
		return ErrNotMonitored
	}

	a.stop()
	zapctx.Info(ctx, "Monitoring stopped", zap.String("employee_id", employeeID))
	return nil
}

// StopAll ends every monitoring session and waits for the actors to drain.
func (e *Engine) StopAll(ctx context.Context) {
	e.mu.Lock()
	actors := e.actors
	e.actors = make(map[string]*actor)
	e.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
	e.wg.Wait()
	zapctx.Info(ctx, "All monitoring sessions stopped", zap.Int("count", len(actors)))
}

// HandleApplicationChange feeds an externally reported context change into
// the employee's pipeline (e.g. from a browser extension).
func (e *Engine) HandleApplicationChange(employeeID string, evt AppEvent) error {
	return e.send(employeeID, appChangeEvent{evt: evt})
}

// RecordInput feeds a batch of input counters into the employee's tracker.
func (e *Engine) RecordInput(employeeID string, keystrokes uint32, mouseScore float64) error {
	return e.send(employeeID, inputEvent{keystrokes: keystrokes, mouseScore: mouseScore})
}

// Status returns the live monitoring state for an employee.
func (e *Engine) Status(employeeID string) (Status, error) {
	a, ok := e.lookup(employeeID)
	if !ok {
		return Status{}, ErrNotMonitored
	}

	reply := make(chan Status, 1)
	select {
	case a.events <- statusRequest{reply: reply}:
	case <-a.done:
		return Status{}, ErrNotMonitored
	}

	// The actor may exit with the request still queued; waiting on stopped
	// keeps the caller from blocking on a reply that will never come.
	select {
	case status := <-reply:
		return status, nil
	case <-a.stopped:
		select {
		case status := <-reply:
			return status, nil
		default:
			return Status{}, ErrNotMonitored
		}
	}
}

// Stats returns violation statistics for an employee.
func (e *Engine) Stats(employeeID string) (Stats, error) {
	a, ok := e.lookup(employeeID)
	if !ok {
		return Stats{}, ErrNotMonitored
	}

	reply := make(chan Stats, 1)
	select {
	case a.events <- statsRequest{reply: reply}:
	case <-a.done:
		return Stats{}, ErrNotMonitored
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-a.stopped:
		select {
		case stats := <-reply:
			return stats, nil
		default:
			return Stats{}, ErrNotMonitored
		}
	}
}

// ActiveEmployees lists the employees currently monitored.
func (e *Engine) ActiveEmployees() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.actors))
	for id := range e.actors {
		out = append(out, id)
	}
	return out
}

func (e *Engine) lookup(employeeID string) (*actor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.actors[employeeID]
	return a, ok
}

func (e *Engine) send(employeeID string, evt any) error {
	a, ok := e.lookup(employeeID)
	if !ok {
		return ErrNotMonitored
	}

	select {
	case a.events <- evt:
		return nil
	case <-a.done:
		return ErrNotMonitored
	}
}

type appChangeEvent struct {
	evt AppEvent
}

type inputEvent struct {
	keystrokes uint32
	mouseScore float64
}

type statusRequest struct {
	reply chan Status
}

type statsRequest struct {
	reply chan Stats
}

// actor is the single-writer pipeline for one employee. All state behind it
// (tracker, observer, violation sessions) is touched only by run's goroutine.
type actor struct {
	employeeID string
	sessionID  string
	mode       Mode

	whitelist *Whitelist
	alerts    *AlertFactory
	tracker   *activityTracker
	observer  *windowObserver
	violation *violationTracker
	samples   *buffer.SampleBuffer

	pollInterval   time.Duration
	sampleInterval time.Duration

	events   chan any
	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

func (e *Engine) newActor(employeeID, sessionID string, mode Mode) *actor {
	a := &actor{
		employeeID:     employeeID,
		sessionID:      sessionID,
		mode:           mode,
		whitelist:      e.deps.Whitelist,
		alerts:         e.deps.Alerts,
		samples:        e.deps.Samples,
		pollInterval:   e.cfg.PollInterval,
		sampleInterval: e.cfg.Activity.SampleInterval,
		events:         make(chan any, 64),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	if a.sampleInterval == 0 {
		a.sampleInterval = time.Minute
	}

	a.tracker = newActivityTracker(employeeID, sessionID, e.cfg.Activity, e.deps.Samples, e.deps.Alerts)
	a.observer = newWindowObserver(employeeID, e.deps.Backend, e.deps.Alerts, e.deps.Metrics, e.cfg.Observer)
	a.observer.recordUsage = func(domain string, d time.Duration) {
		e.deps.Whitelist.RecordUsage(employeeID, domain, d)
	}
	a.violation = newViolationTracker(employeeID, e.cfg.Violation, e.deps.Classifier,
		e.deps.Capturer, e.deps.Evidence, e.deps.Hashes, e.deps.Alerts, e.deps.Metrics)
	return a
}

func (a *actor) stop() {
	a.stopOnce.Do(func() { close(a.done) })
	<-a.stopped
}

func (a *actor) run(ctx context.Context) {
	ctx = zapctx.WithFields(ctx,
		zap.String("employee_id", a.employeeID),
		zap.String("session_id", a.sessionID),
	)
	defer close(a.stopped)

	a.violation.seedRecentHashes(ctx)

	pollTicker := time.NewTicker(a.pollInterval)
	defer pollTicker.Stop()
	sampleTicker := time.NewTicker(a.sampleInterval)
	defer sampleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.shutdown(ctx)
			return
		case <-a.done:
			a.shutdown(ctx)
			return
		case <-pollTicker.C:
			if evt, changed := a.observer.poll(ctx); changed {
				a.handleAppChange(ctx, evt)
			}
		case <-sampleTicker.C:
			a.tracker.sample(ctx)
		case evt := <-a.events:
			a.dispatch(ctx, evt)
		}
	}
}

func (a *actor) dispatch(ctx context.Context, evt any) {
	switch e := evt.(type) {
	case appChangeEvent:
		a.handleAppChange(ctx, e.evt)
	case inputEvent:
		a.tracker.recordInput(e.keystrokes, e.mouseScore)
	case statusRequest:
		e.reply <- Status{
			Active:             true,
			IsIdle:             a.tracker.isIdle(),
			LastActivity:       a.tracker.lastInput,
			ViolationCount:     a.violation.violations,
			CurrentApplication: a.tracker.currentApp,
		}
	case statsRequest:
		e.reply <- Stats{
			ViolationCount:         a.violation.violations,
			TotalViolationSessions: a.violation.totalSessions,
			CurrentViolationActive: a.violation.open(),
		}
	}
}

// handleAppChange runs the whitelist decision for a context change and
// routes the verdict into the mode's pipeline.
func (a *actor) handleAppChange(ctx context.Context, evt AppEvent) {
	a.tracker.setApplication(evt.Name)

	target := evt.URL
	if target == "" {
		target = evt.Name
	}
	if target == "" {
		return
	}

	verdict := a.whitelist.Evaluate(a.employeeID, target)

	if a.mode == ModeLegacy {
		if !verdict.Allowed {
			a.violation.violations++
			a.alerts.Create(ctx, a.employeeID, AlertUnauthorized, SeverityMedium,
				"Unauthorized application use",
				fmt.Sprintf("Access outside the whitelist: %s", appContext(evt)),
				map[string]interface{}{
					"application": evt.Name,
					"url":         evt.URL,
					"reason":      verdict.Reason,
				})
		}
		return
	}

	if verdict.Allowed {
		a.violation.handleAuthorized(ctx)
		if verdict.AutoScreenshot {
			a.violation.captureBenign(ctx, evt, verdict.MonitoringLevel)
		}
		return
	}

	a.violation.handleDenied(ctx, evt, verdict.Reason)
}

// shutdown closes the open violation session, takes a final sample and
// flushes the buffer so the tail of the session is durable before Stop
// returns to the caller.
func (a *actor) shutdown(ctx context.Context) {
	a.violation.forceClose(ctx)
	a.tracker.sample(ctx)
	if a.samples != nil {
		if err := a.samples.Flush(ctx); err != nil {
			zapctx.Warn(ctx, "Failed to flush activity samples on stop", zap.Error(err))
		}
	}
	zapctx.Debug(ctx, "Monitoring actor exited")
}
