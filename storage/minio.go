package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage is the evidence store backed by MinIO. Evidence objects are
// grouped by employee and day so listing by date filter is a prefix scan.
type Storage struct {
	client         *minio.Client
	evidenceBucket string
	publicEndpoint string // Public URL to replace in presigned URLs
}

type EvidenceObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

func New(endpoint, accessKey, secretKey string, useSSL bool, evidenceBucket, publicEndpoint string) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if evidenceBucket == "" {
		evidenceBucket = "evidence"
	}

	s := &Storage{
		client:         client,
		evidenceBucket: evidenceBucket,
		publicEndpoint: publicEndpoint,
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, s.evidenceBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", s.evidenceBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, s.evidenceBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", s.evidenceBucket, err)
		}
	}

	return s, nil
}

// UploadEvidence stores one JPEG evidence capture and returns the object name.
func (s *Storage) UploadEvidence(ctx context.Context, employeeID, screenshotID string, capturedAt time.Time, data []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s/%s.jpg", employeeID, capturedAt.Format("2006-01-02"), screenshotID)

	_, err := s.client.PutObject(
		ctx,
		s.evidenceBucket,
		objectName,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}

	return objectName, nil
}

// ListEvidence lists evidence objects for an employee, optionally filtered
// to a single day (YYYY-MM-DD).
func (s *Storage) ListEvidence(ctx context.Context, employeeID, day string) ([]EvidenceObject, error) {
	prefix := employeeID + "/"
	if day != "" {
		prefix += day + "/"
	}

	objects := make([]EvidenceObject, 0)
	for obj := range s.client.ListObjects(ctx, s.evidenceBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list evidence: %w", obj.Err)
		}
		objects = append(objects, EvidenceObject{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}

func (s *Storage) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	// Check if object exists before generating URL
	_, err := s.client.StatObject(ctx, s.evidenceBucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("object not found: %w", err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.evidenceBucket, objectName, 3600*time.Second, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	urlStr := url.String()

	// Replace internal endpoint with public endpoint if configured
	if s.publicEndpoint != "" {
		if idx := strings.Index(urlStr, "/"+s.evidenceBucket); idx > 0 {
			urlStr = s.publicEndpoint + urlStr[idx:]
		}
	}

	return urlStr, nil
}
