package database

import "time"

// ActivitySample is one sampling-tick observation for an employee.
type ActivitySample struct {
	EmployeeID         string    `json:"employee_id"`
	Timestamp          time.Time `json:"timestamp"`
	KeystrokeCount     uint32    `json:"keystroke_count"`
	MouseActivityScore float64   `json:"mouse_activity_score"`
	IdleDurationSec    uint32    `json:"idle_duration_sec"`
	ProductivityScore  float64   `json:"productivity_score"`
	CurrentApplication string    `json:"current_application"`
	SessionID          string    `json:"session_id"`
}

// ScreenshotRecord is the metadata row for one persisted evidence capture.
// The image bytes live in the evidence store; this row carries the content
// hash used for deduplication.
type ScreenshotRecord struct {
	EmployeeID  string    `json:"employee_id"`
	Timestamp   time.Time `json:"timestamp"`
	ScreenshotID string   `json:"screenshot_id"`
	ContentHash string    `json:"content_hash"`
	Trigger     string    `json:"trigger"`
	IsFlagged   bool      `json:"is_flagged"`
	StoragePath string    `json:"storage_path"`
	FileSize    uint64    `json:"file_size"`
	OCRText     string    `json:"ocr_text"`
	AIAnalysis  string    `json:"ai_analysis"`
}

// AlertEvent is one row of the append-only alert log. The authoritative
// active-alert set lives in the alert factory; every create, merge and
// status transition is appended here for history queries.
type AlertEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	AlertID     string    `json:"alert_id"`
	EmployeeID  string    `json:"employee_id"`
	AlertType   string    `json:"alert_type"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Action      string    `json:"action"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Data        string    `json:"data"`
	ActorUser   string    `json:"actor_user"`
	Notes       string    `json:"notes"`
}
