package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

type Database struct {
	conn driver.Conn
}

func New(host string, port int, database, username, password string) (*Database, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Database{conn: conn}, nil
}

// WriteActivitySamples inserts a batch of activity samples in a single
// statement. Called by the sample buffer on its flush cycle.
func (db *Database) WriteActivitySamples(ctx context.Context, samples []ActivitySample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, `INSERT INTO monitoring.activity_samples
                (employee_id, timestamp, keystroke_count, mouse_activity_score,
                 idle_duration_sec, productivity_score, current_application, session_id)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample batch: %w", err)
	}

	for _, s := range samples {
		if err := batch.Append(
			s.EmployeeID, s.Timestamp, s.KeystrokeCount, s.MouseActivityScore,
			s.IdleDurationSec, s.ProductivityScore, s.CurrentApplication, s.SessionID,
		); err != nil {
			return fmt.Errorf("failed to append sample: %w", err)
		}
	}

	start := time.Now()
	if err := batch.Send(); err != nil {
		zapctx.Error(ctx, "Failed to write activity sample batch",
			zap.Error(err),
			zap.Int("samples", len(samples)),
		)
		return err
	}

	if d := time.Since(start); d > 100*time.Millisecond {
		zapctx.Warn(ctx, "Slow INSERT query detected",
			zap.Duration("duration", d),
			zap.String("table", "activity_samples"),
			zap.Int("samples", len(samples)),
		)
	}

	return nil
}

func (db *Database) InsertScreenshot(ctx context.Context, rec ScreenshotRecord) error {
	query := `INSERT INTO monitoring.screenshots
                (employee_id, timestamp, screenshot_id, content_hash, trigger,
                 is_flagged, storage_path, file_size, ocr_text, ai_analysis)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return db.conn.Exec(ctx, query,
		rec.EmployeeID, rec.Timestamp, rec.ScreenshotID, rec.ContentHash,
		rec.Trigger, rec.IsFlagged, rec.StoragePath, rec.FileSize,
		rec.OCRText, rec.AIAnalysis)
}

// RecentScreenshotHashes returns the content hashes persisted for an
// employee since the given time, used for the cross-episode capture guard.
func (db *Database) RecentScreenshotHashes(ctx context.Context, employeeID string, since time.Time) ([]string, error) {
	query := `SELECT content_hash
                FROM monitoring.screenshots
                WHERE employee_id = ? AND timestamp >= ?`

	rows, err := db.conn.Query(ctx, query, employeeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			continue
		}
		hashes = append(hashes, h)
	}

	return hashes, rows.Err()
}

func (db *Database) InsertAlertEvent(ctx context.Context, event AlertEvent) error {
	query := `INSERT INTO monitoring.alert_events
                (timestamp, alert_id, employee_id, alert_type, severity, status,
                 action, title, description, data, actor_user, notes)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return db.conn.Exec(ctx, query,
		event.Timestamp, event.AlertID, event.EmployeeID, event.AlertType,
		event.Severity, event.Status, event.Action, event.Title,
		event.Description, event.Data, event.ActorUser, event.Notes)
}

// AlertHistory returns the most recent alert events for an employee.
func (db *Database) AlertHistory(ctx context.Context, employeeID string, limit int) ([]AlertEvent, error) {
	query := `SELECT timestamp, alert_id, employee_id, alert_type, severity, status,
                       action, title, description, data, actor_user, notes
                FROM monitoring.alert_events
                WHERE employee_id = ?
                ORDER BY timestamp DESC
                LIMIT ?`

	start := time.Now()
	rows, err := db.conn.Query(ctx, query, employeeID, limit)
	if err != nil {
		zapctx.Error(ctx, "Failed to query alert history",
			zap.Error(err),
			zap.String("employee_id", employeeID),
		)
		return nil, err
	}
	defer rows.Close()

	events := make([]AlertEvent, 0)
	for rows.Next() {
		var e AlertEvent
		if err := rows.Scan(&e.Timestamp, &e.AlertID, &e.EmployeeID, &e.AlertType,
			&e.Severity, &e.Status, &e.Action, &e.Title,
			&e.Description, &e.Data, &e.ActorUser, &e.Notes); err != nil {
			continue
		}
		events = append(events, e)
	}

	if d := time.Since(start); d > 200*time.Millisecond {
		zapctx.Warn(ctx, "Slow SELECT query detected",
			zap.Duration("duration", d),
			zap.String("table", "alert_events"),
			zap.Int("result_count", len(events)),
		)
	}

	return events, rows.Err()
}

func (db *Database) Close() error {
	return db.conn.Close()
}
