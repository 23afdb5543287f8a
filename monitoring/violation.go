package monitoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

// ViolationConfig bounds the evidence capture of a violation episode.
type ViolationConfig struct {
	MaxScreenshots          int
	Cooldown                time.Duration
	HashLookback            time.Duration
	RelevanceCloseThreshold int
}

type violationSession struct {
	startedAt  time.Time
	appContext string
	hashes     map[string]struct{}
	shots      int
	alerted    bool
}

// violationTracker is the per-employee violation-session state machine.
// It is owned by the employee's actor goroutine; all methods are called
// from that single goroutine, so no locking is needed.
type violationTracker struct {
	cfg        ViolationConfig
	employeeID string
	classifier *Classifier
	capturer   Capturer
	evidence   EvidenceSink
	hashSource HashSource
	alerts     *AlertFactory
	metrics    *Metrics

	session       *violationSession
	cooldownUntil time.Time
	recentHashes  map[string]time.Time // cross-episode capture guard
	totalSessions int
	violations    int
	now           func() time.Time
}

func newViolationTracker(employeeID string, cfg ViolationConfig, classifier *Classifier, capturer Capturer, evidence EvidenceSink, hashSource HashSource, alerts *AlertFactory, metrics *Metrics) *violationTracker {
	if cfg.MaxScreenshots == 0 {
		cfg.MaxScreenshots = 3
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.HashLookback == 0 {
		cfg.HashLookback = 30 * time.Minute
	}
	if cfg.RelevanceCloseThreshold == 0 {
		cfg.RelevanceCloseThreshold = 50
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &violationTracker{
		cfg:          cfg,
		employeeID:   employeeID,
		classifier:   classifier,
		capturer:     capturer,
		evidence:     evidence,
		hashSource:   hashSource,
		alerts:       alerts,
		metrics:      metrics,
		recentHashes: make(map[string]time.Time),
		now:          time.Now,
	}
}

func (vt *violationTracker) open() bool {
	return vt.session != nil
}

// seedRecentHashes loads the hashes persisted within the lookback window so
// the cross-episode guard survives a monitoring restart for the employee.
func (vt *violationTracker) seedRecentHashes(ctx context.Context) {
	if vt.hashSource == nil {
		return
	}

	now := vt.now()
	hashes, err := vt.hashSource.RecentScreenshotHashes(ctx, vt.employeeID, now.Add(-vt.cfg.HashLookback))
	if err != nil {
		zapctx.Warn(ctx, "Failed to load recent evidence hashes",
			zap.Error(err), zap.String("employee_id", vt.employeeID))
		return
	}

	for _, h := range hashes {
		if _, ok := vt.recentHashes[h]; !ok {
			vt.recentHashes[h] = now
		}
	}
}

// handleDenied processes a denied application-change event. It opens a
// session when pre-screening says the context warrants monitoring, and
// drives evidence capture for an already-open session.
func (vt *violationTracker) handleDenied(ctx context.Context, evt AppEvent, reason string) {
	if vt.session != nil {
		vt.violations++
		vt.captureAndAnalyze(ctx, evt)
		return
	}

	now := vt.now()
	if now.Before(vt.cooldownUntil) {
		zapctx.Debug(ctx, "Violation session suppressed by cooldown",
			zap.String("employee_id", vt.employeeID),
			zap.Time("cooldown_until", vt.cooldownUntil),
		)
		return
	}

	// The pre-screen gate runs before any screenshot is taken.
	pre := vt.classifier.Prescreen(ctx, vt.employeeID, evt)
	if !vt.classifier.ShouldMonitor(pre) {
		zapctx.Debug(ctx, "Pre-screening cleared denied context, no capture",
			zap.String("employee_id", vt.employeeID),
			zap.String("url", evt.URL),
			zap.Int("confidence", pre.Confidence),
			zap.String("source", pre.Source),
		)
		return
	}

	vt.session = &violationSession{
		startedAt:  now,
		appContext: appContext(evt),
		hashes:     make(map[string]struct{}),
	}
	vt.totalSessions++
	vt.violations++
	vt.metrics.ViolationSessions.Inc()

	zapctx.Info(ctx, "Violation session opened",
		zap.String("employee_id", vt.employeeID),
		zap.String("application", evt.Name),
		zap.String("url", evt.URL),
		zap.String("deny_reason", reason),
		zap.String("prescreen_source", pre.Source),
	)

	vt.captureAndAnalyze(ctx, evt)
}

// handleAuthorized closes any open session: the employee returned to
// permitted activity.
func (vt *violationTracker) handleAuthorized(ctx context.Context) {
	if vt.session == nil {
		return
	}
	vt.closeSession(ctx, "authorized activity")
}

// forceClose is called when monitoring stops for the employee.
func (vt *violationTracker) forceClose(ctx context.Context) {
	if vt.session == nil {
		return
	}
	vt.closeSession(ctx, "monitoring stopped")
}

func (vt *violationTracker) captureAndAnalyze(ctx context.Context, evt AppEvent) {
	s := vt.session

	image, err := vt.capturer.Capture(ctx)
	if err != nil {
		// Headless or failing capture substitutes a placeholder rather
		// than aborting the session.
		zapctx.Warn(ctx, "Screen capture failed, using placeholder",
			zap.Error(err), zap.String("employee_id", vt.employeeID))
		image = placeholderJPEG()
	}

	hash := contentHash(image)

	if _, dup := s.hashes[hash]; dup {
		vt.metrics.ScreenshotsDeduped.Inc()
		zapctx.Debug(ctx, "Duplicate capture within session discarded",
			zap.String("employee_id", vt.employeeID), zap.String("hash", hash))
		return
	}
	if vt.seenRecently(hash) {
		vt.metrics.ScreenshotsDeduped.Inc()
		zapctx.Debug(ctx, "Capture matches recent evidence, discarded",
			zap.String("employee_id", vt.employeeID), zap.String("hash", hash))
		return
	}

	analysis, ocrText := vt.classifier.Analyze(ctx, vt.employeeID, evt, image)

	s.shots++
	s.hashes[hash] = struct{}{}
	vt.recentHashes[hash] = vt.now()

	shot := Screenshot{
		EmployeeID:   vt.employeeID,
		ScreenshotID: uuid.NewString(),
		Timestamp:    vt.now(),
		ContentHash:  hash,
		Trigger:      "violation",
		IsFlagged:    !analysis.IsWorkRelated,
		Sequence:     s.shots,
		OCRText:      ocrText,
		AIAnalysis:   &analysis,
	}

	if vt.evidence != nil {
		if _, err := vt.evidence.StoreScreenshot(ctx, shot, image); err != nil {
			zapctx.Error(ctx, "Failed to persist evidence capture",
				zap.Error(err), zap.String("employee_id", vt.employeeID))
		}
	}
	vt.metrics.ScreenshotsCaptured.WithLabelValues("violation").Inc()

	// Only the first capture of a session raises an alert.
	if s.shots == 1 && !s.alerted {
		s.alerted = true
		vt.raiseAlert(ctx, evt, analysis)
	}

	if analysis.TaskRelevance > vt.cfg.RelevanceCloseThreshold {
		// Benefit of the doubt: the evidence says this is work-relevant.
		zapctx.Info(ctx, "Analysis found work-relevant activity, closing session early",
			zap.String("employee_id", vt.employeeID),
			zap.Int("task_relevance", analysis.TaskRelevance),
		)
		vt.closeSession(ctx, "work-relevant activity")
		return
	}

	if s.shots >= vt.cfg.MaxScreenshots {
		vt.closeSession(ctx, "capture cap reached")
	}
}

// captureBenign takes an auto-screenshot for a whitelisted entry that
// requests one. Benign captures are never flagged and open no session.
func (vt *violationTracker) captureBenign(ctx context.Context, evt AppEvent, monitoringLevel string) {
	image, err := vt.capturer.Capture(ctx)
	if err != nil {
		zapctx.Warn(ctx, "Benign capture failed, using placeholder",
			zap.Error(err), zap.String("employee_id", vt.employeeID))
		image = placeholderJPEG()
	}

	hash := contentHash(image)
	if vt.seenRecently(hash) {
		vt.metrics.ScreenshotsDeduped.Inc()
		return
	}
	vt.recentHashes[hash] = vt.now()

	shot := Screenshot{
		EmployeeID:   vt.employeeID,
		ScreenshotID: uuid.NewString(),
		Timestamp:    vt.now(),
		ContentHash:  hash,
		Trigger:      "auto_capture:" + monitoringLevel,
		IsFlagged:    false,
	}
	if vt.evidence != nil {
		if _, err := vt.evidence.StoreScreenshot(ctx, shot, image); err != nil {
			zapctx.Warn(ctx, "Failed to persist benign capture",
				zap.Error(err), zap.String("employee_id", vt.employeeID))
			return
		}
	}
	vt.metrics.ScreenshotsCaptured.WithLabelValues("auto_capture").Inc()
}

func (vt *violationTracker) raiseAlert(ctx context.Context, evt AppEvent, analysis AnalysisResult) {
	severity := SeverityMedium
	if !analysis.IsWorkRelated && analysis.TaskRelevance < 20 {
		severity = SeverityHigh
	} else if analysis.IsWorkRelated || analysis.TaskRelevance > 40 {
		severity = SeverityLow
	}

	data := map[string]interface{}{
		"application":    evt.Name,
		"url":            evt.URL,
		"task_relevance": analysis.TaskRelevance,
		"activity_type":  analysis.ActivityType,
		"source":         analysis.Source,
	}

	vt.alerts.Create(ctx, vt.employeeID, AlertViolation, severity,
		"Unauthorized application use",
		fmt.Sprintf("Detected activity outside the whitelist: %s", appContext(evt)),
		data)
}

func (vt *violationTracker) closeSession(ctx context.Context, reason string) {
	s := vt.session
	vt.session = nil
	vt.cooldownUntil = vt.now().Add(vt.cfg.Cooldown)

	zapctx.Info(ctx, "Violation session closed",
		zap.String("employee_id", vt.employeeID),
		zap.String("reason", reason),
		zap.Int("screenshots", s.shots),
		zap.Duration("duration", vt.now().Sub(s.startedAt)),
	)
}

// seenRecently reports whether the hash matches evidence persisted for this
// employee within the lookback window, pruning expired entries as it goes.
func (vt *violationTracker) seenRecently(hash string) bool {
	cutoff := vt.now().Add(-vt.cfg.HashLookback)
	for h, t := range vt.recentHashes {
		if t.Before(cutoff) {
			delete(vt.recentHashes, h)
		}
	}
	_, ok := vt.recentHashes[hash]
	return ok
}

func contentHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func appContext(evt AppEvent) string {
	if evt.URL != "" {
		return fmt.Sprintf("%s (%s)", evt.Name, evt.URL)
	}
	return evt.Name
}

// MarshalAnalysis renders an analysis result for the evidence metadata row.
func MarshalAnalysis(a *AnalysisResult) string {
	if a == nil {
		return ""
	}
	b, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(b)
}
