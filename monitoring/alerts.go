package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusDismissed    AlertStatus = "dismissed"
)

// Alert types raised by the engine.
const (
	AlertIdle             = "idle_period"
	AlertProductivityDrop = "productivity_drop"
	AlertExcessiveUsage   = "excessive_usage"
	AlertUnauthorized     = "unauthorized_access"
	AlertViolation        = "policy_violation"
)

type Alert struct {
	ID          string                 `json:"id"`
	EmployeeID  string                 `json:"employee_id"`
	Type        string                 `json:"type"`
	Severity    Severity               `json:"severity"`
	Status      AlertStatus            `json:"status"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ActorUser   string                 `json:"actor_user,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
}

// AlertRecorder appends alert lifecycle events to durable history.
// Implemented by database.Database; nil disables persistence.
type AlertRecorder interface {
	InsertAlertEvent(ctx context.Context, event database.AlertEvent) error
}

// AlertFactory owns the active-alert set and the deduplication rule: a new
// alert for an (employee, type) pair while an active one created within the
// dedup window exists updates that record instead of inserting a new one.
// Retention is capped; evicted alerts remain queryable through the ClickHouse
// event history.
type AlertFactory struct {
	mu          sync.Mutex
	active      map[string]*Alert // employeeID|type -> active alert
	byID        map[string]*Alert
	order       []string // insertion order, oldest first
	maxRetained int
	dedupWindow time.Duration
	recorder    AlertRecorder
	metrics     *Metrics
	now         func() time.Time
}

func NewAlertFactory(dedupWindow time.Duration, recorder AlertRecorder, metrics *Metrics) *AlertFactory {
	if dedupWindow == 0 {
		dedupWindow = 5 * time.Minute
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &AlertFactory{
		active:      make(map[string]*Alert),
		byID:        make(map[string]*Alert),
		maxRetained: 1000,
		dedupWindow: dedupWindow,
		recorder:    recorder,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Create raises an alert, or merges into the matching active alert created
// within the dedup window. The second return reports whether a new record
// was inserted.
func (f *AlertFactory) Create(ctx context.Context, employeeID, alertType string, severity Severity, title, description string, data map[string]interface{}) (*Alert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	key := employeeID + "|" + alertType

	// The window is anchored to creation time: a stream of merges does not
	// keep an old alert absorbing new ones indefinitely.
	if existing, ok := f.active[key]; ok && now.Sub(existing.CreatedAt) < f.dedupWindow {
		existing.UpdatedAt = now
		if existing.Data == nil {
			existing.Data = make(map[string]interface{})
		}
		for k, v := range data {
			existing.Data[k] = v
		}
		if severityRank(severity) > severityRank(existing.Severity) {
			existing.Severity = severity
		}

		f.metrics.AlertsDeduplicated.Inc()
		f.record(ctx, existing, "merged")
		zapctx.Debug(ctx, "Alert merged into existing active alert",
			zap.String("employee_id", employeeID),
			zap.String("type", alertType),
			zap.String("alert_id", existing.ID),
		)
		return existing, false
	}

	alert := &Alert{
		ID:          uuid.NewString(),
		EmployeeID:  employeeID,
		Type:        alertType,
		Severity:    severity,
		Status:      StatusActive,
		Title:       title,
		Description: description,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.active[key] = alert
	f.byID[alert.ID] = alert
	f.order = append(f.order, alert.ID)
	f.evictLocked()

	f.metrics.AlertsCreated.WithLabelValues(alertType).Inc()
	f.record(ctx, alert, "created")
	zapctx.Info(ctx, "Alert created",
		zap.String("employee_id", employeeID),
		zap.String("type", alertType),
		zap.String("severity", string(severity)),
		zap.String("alert_id", alert.ID),
	)
	return alert, true
}

// Acknowledge moves an active alert to acknowledged.
func (f *AlertFactory) Acknowledge(ctx context.Context, alertID, user, notes string) error {
	return f.transition(ctx, alertID, StatusAcknowledged, user, notes)
}

// Resolve moves an active alert to resolved.
func (f *AlertFactory) Resolve(ctx context.Context, alertID, user, notes string) error {
	return f.transition(ctx, alertID, StatusResolved, user, notes)
}

// Dismiss moves an active alert to the terminal dismissed state.
func (f *AlertFactory) Dismiss(ctx context.Context, alertID, user, notes string) error {
	return f.transition(ctx, alertID, StatusDismissed, user, notes)
}

func (f *AlertFactory) transition(ctx context.Context, alertID string, to AlertStatus, user, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	alert, ok := f.byID[alertID]
	if !ok {
		return fmt.Errorf("alert %s not found", alertID)
	}
	if alert.Status != StatusActive {
		return fmt.Errorf("alert %s is %s, only active alerts can transition", alertID, alert.Status)
	}

	alert.Status = to
	alert.ActorUser = user
	alert.Notes = notes
	alert.UpdatedAt = f.now()
	if key := alert.EmployeeID + "|" + alert.Type; f.active[key] == alert {
		delete(f.active, key)
	}

	f.record(ctx, alert, string(to))
	return nil
}

// Get returns an alert by id.
func (f *AlertFactory) Get(alertID string) (*Alert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[alertID]
	return a, ok
}

// ActiveCount returns the number of active alerts for an employee.
func (f *AlertFactory) ActiveCount(employeeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.active {
		if a.EmployeeID == employeeID {
			n++
		}
	}
	return n
}

// evictLocked drops the oldest retained alerts once the cap is exceeded.
// The durable record of an evicted alert is its ClickHouse event trail.
func (f *AlertFactory) evictLocked() {
	for len(f.byID) > f.maxRetained && len(f.order) > 0 {
		oldest := f.order[0]
		f.order = f.order[1:]

		a, ok := f.byID[oldest]
		if !ok {
			continue
		}
		key := a.EmployeeID + "|" + a.Type
		if f.active[key] == a {
			delete(f.active, key)
		}
		delete(f.byID, oldest)
	}
}

// record appends the event to history; persistence failures are logged,
// never propagated (the in-memory state is authoritative).
func (f *AlertFactory) record(ctx context.Context, alert *Alert, action string) {
	if f.recorder == nil {
		return
	}

	dataJSON := ""
	if len(alert.Data) > 0 {
		if b, err := json.Marshal(alert.Data); err == nil {
			dataJSON = string(b)
		}
	}

	event := database.AlertEvent{
		Timestamp:   alert.UpdatedAt,
		AlertID:     alert.ID,
		EmployeeID:  alert.EmployeeID,
		AlertType:   alert.Type,
		Severity:    string(alert.Severity),
		Status:      string(alert.Status),
		Action:      action,
		Title:       alert.Title,
		Description: alert.Description,
		Data:        dataJSON,
		ActorUser:   alert.ActorUser,
		Notes:       alert.Notes,
	}
	if err := f.recorder.InsertAlertEvent(ctx, event); err != nil {
		zapctx.Warn(ctx, "Failed to persist alert event",
			zap.Error(err),
			zap.String("alert_id", alert.ID),
		)
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
