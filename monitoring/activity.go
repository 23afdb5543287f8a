package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/buffer"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

// ActivityConfig tunes the sampling and idle detection of one tracker.
type ActivityConfig struct {
	SampleInterval  time.Duration
	IdleThreshold   time.Duration
	LowProductivity float64
}

// activityTracker accumulates input counters between sampling ticks and
// produces one ActivitySample per tick. Owned by the employee's actor
// goroutine, so it needs no locking.
type activityTracker struct {
	employeeID string
	sessionID  string
	cfg        ActivityConfig
	samples    *buffer.SampleBuffer
	alerts     *AlertFactory

	lastInput     time.Time
	lastSample    time.Time
	keystrokes    uint32
	mouseScoreSum float64
	mouseEvents   int
	currentApp    string
	idleAlerted   bool

	now func() time.Time
}

func newActivityTracker(employeeID, sessionID string, cfg ActivityConfig, samples *buffer.SampleBuffer, alerts *AlertFactory) *activityTracker {
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = time.Minute
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.LowProductivity == 0 {
		cfg.LowProductivity = 30
	}
	now := time.Now()
	return &activityTracker{
		employeeID: employeeID,
		sessionID:  sessionID,
		cfg:        cfg,
		samples:    samples,
		alerts:     alerts,
		lastInput:  now,
		lastSample: now,
		now:        time.Now,
	}
}

// recordInput folds a batch of input events into the current interval and
// ends any idle episode.
func (at *activityTracker) recordInput(keystrokes uint32, mouseScore float64) {
	at.lastInput = at.now()
	at.keystrokes += keystrokes
	if mouseScore > 0 {
		at.mouseScoreSum += clampScore(mouseScore)
		at.mouseEvents++
	}
	at.idleAlerted = false
}

func (at *activityTracker) setApplication(app string) {
	at.currentApp = app
}

func (at *activityTracker) isIdle() bool {
	return at.now().Sub(at.lastInput) >= at.cfg.IdleThreshold
}

// sample closes the current interval: computes the productivity score,
// raises idle/low-productivity alerts and enqueues the row for flushing.
func (at *activityTracker) sample(ctx context.Context) database.ActivitySample {
	now := at.now()
	interval := now.Sub(at.lastSample)
	if interval <= 0 {
		interval = at.cfg.SampleInterval
	}

	idle := now.Sub(at.lastInput)
	if idle > interval {
		idle = interval
	}
	if idle < 0 {
		idle = 0
	}

	score := at.productivity(interval, idle)

	row := database.ActivitySample{
		EmployeeID:         at.employeeID,
		Timestamp:          now,
		KeystrokeCount:     at.keystrokes,
		MouseActivityScore: at.meanMouseScore(),
		IdleDurationSec:    uint32(idle.Seconds()),
		ProductivityScore:  score,
		CurrentApplication: at.currentApp,
		SessionID:          at.sessionID,
	}
	at.samples.Add(row)

	if at.isIdle() && !at.idleAlerted {
		at.idleAlerted = true
		at.alerts.Create(ctx, at.employeeID, AlertIdle, SeverityMedium,
			"Extended idle period",
			fmt.Sprintf("No input activity for over %s", at.cfg.IdleThreshold),
			map[string]interface{}{"idle_since": at.lastInput.Format(time.RFC3339)})
	} else if score < at.cfg.LowProductivity && !at.isIdle() {
		at.alerts.Create(ctx, at.employeeID, AlertProductivityDrop, SeverityLow,
			"Low productivity score",
			fmt.Sprintf("Productivity score %.0f fell below %.0f", score, at.cfg.LowProductivity),
			map[string]interface{}{"score": score})
	}

	zapctx.Debug(ctx, "Activity sample recorded",
		zap.String("employee_id", at.employeeID),
		zap.Uint32("keystrokes", row.KeystrokeCount),
		zap.Float64("productivity", score),
	)

	at.keystrokes = 0
	at.mouseScoreSum = 0
	at.mouseEvents = 0
	at.lastSample = now
	return row
}

// productivity blends keystroke rate, mouse activity and non-idle time into
// a 0-100 score: 30% keystrokes, 30% mouse, 40% active time.
func (at *activityTracker) productivity(interval, idle time.Duration) float64 {
	minutes := interval.Minutes()
	if minutes <= 0 {
		minutes = 1
	}

	// 60 keystrokes per minute saturates the keystroke component.
	keyScore := clampScore(float64(at.keystrokes) / minutes / 60 * 100)
	mouseScore := at.meanMouseScore()
	activeScore := clampScore((1 - idle.Seconds()/interval.Seconds()) * 100)

	return clampScore(0.3*keyScore + 0.3*mouseScore + 0.4*activeScore)
}

func (at *activityTracker) meanMouseScore() float64 {
	if at.mouseEvents == 0 {
		return 0
	}
	return clampScore(at.mouseScoreSum / float64(at.mouseEvents))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
