package main

import (
	"context"
	"fmt"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/monitoring"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/storage"
)

// evidenceStore persists evidence captures: image bytes to MinIO, the
// metadata row (with content hash) to ClickHouse.
type evidenceStore struct {
	db      *database.Database
	storage *storage.Storage
}

func (es *evidenceStore) StoreScreenshot(ctx context.Context, shot monitoring.Screenshot, image []byte) (string, error) {
	path, err := es.storage.UploadEvidence(ctx, shot.EmployeeID, shot.ScreenshotID, shot.Timestamp, image)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}

	rec := database.ScreenshotRecord{
		EmployeeID:   shot.EmployeeID,
		Timestamp:    shot.Timestamp,
		ScreenshotID: shot.ScreenshotID,
		ContentHash:  shot.ContentHash,
		Trigger:      shot.Trigger,
		IsFlagged:    shot.IsFlagged,
		StoragePath:  path,
		FileSize:     uint64(len(image)),
		OCRText:      shot.OCRText,
		AIAnalysis:   monitoring.MarshalAnalysis(shot.AIAnalysis),
	}
	if err := es.db.InsertScreenshot(ctx, rec); err != nil {
		return path, fmt.Errorf("failed to record evidence metadata: %w", err)
	}
	return path, nil
}
