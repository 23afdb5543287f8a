// Package monitoring implements the intelligent workplace-activity
// monitoring engine: per-employee activity sampling, active-window
// detection, whitelist evaluation, the two-stage content classifier,
// violation-session management and alert deduplication.
package monitoring

import (
	"context"
	"time"
)

// Mode selects the compliance pipeline for a monitoring session.
type Mode string

const (
	// ModeIntelligent routes denied context changes through pre-screening,
	// bounded evidence capture and AI analysis.
	ModeIntelligent Mode = "intelligent"
	// ModeLegacy performs a direct whitelist check and alerts without any
	// evidence capture. Kept for backward compatibility behind config.
	ModeLegacy Mode = "legacy"
)

// AppEvent describes a detected application/website context.
type AppEvent struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Status is the live monitoring state for one employee.
type Status struct {
	Active             bool      `json:"active"`
	IsIdle             bool      `json:"is_idle"`
	LastActivity       time.Time `json:"last_activity"`
	ViolationCount     int       `json:"violation_count"`
	CurrentApplication string    `json:"current_application"`
}

// Stats summarizes violation activity for one employee.
type Stats struct {
	ViolationCount         int  `json:"violation_count"`
	TotalViolationSessions int  `json:"total_violation_sessions"`
	CurrentViolationActive bool `json:"current_violation_active"`
}

// Task is the employee's currently assigned task, used for relevance scoring.
type Task struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	DueDate     time.Time `json:"due_date"`
}

// TaskProvider supplies the current task for an employee. A nil task (with
// nil error) means no task is assigned.
type TaskProvider interface {
	CurrentTask(ctx context.Context, employeeID string) (*Task, error)
}

// TextClassifier is the external text-classification service. Optional;
// the classifier falls back to keyword heuristics when it is absent or
// failing.
type TextClassifier interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OCREngine extracts text from a captured image.
type OCREngine interface {
	ExtractText(ctx context.Context, image []byte) (string, float64, error)
}

// Screenshot is one evidence capture produced by the engine.
type Screenshot struct {
	EmployeeID   string
	ScreenshotID string
	Timestamp    time.Time
	ContentHash  string
	Trigger      string
	IsFlagged    bool
	Sequence     int
	OCRText      string
	AIAnalysis   *AnalysisResult
}

// EvidenceSink persists a capture (image bytes plus metadata) and returns
// the stored location. Implemented outside the engine by the MinIO +
// ClickHouse pair.
type EvidenceSink interface {
	StoreScreenshot(ctx context.Context, shot Screenshot, image []byte) (string, error)
}

// HashSource lists capture hashes already persisted for an employee since a
// point in time. Implemented by database.Database; nil skips seeding and the
// dedup guard starts empty.
type HashSource interface {
	RecentScreenshotHashes(ctx context.Context, employeeID string, since time.Time) ([]string, error)
}

// NoTasks is a TaskProvider for deployments without a task system.
type NoTasks struct{}

func (NoTasks) CurrentTask(ctx context.Context, employeeID string) (*Task, error) {
	return nil, nil
}
