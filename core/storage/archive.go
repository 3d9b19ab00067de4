package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
)

// Archive stores raw seat snapshots so that any reconciliation cycle can be
// replayed or audited later. One JSON object is written per cycle under
// snapshots/<performance>/<timestamp>.json.
type Archive struct {
	client Client
	bucket string
}

// NewArchive creates an Archive writing to the given bucket.
func NewArchive(client Client, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

// Store serializes the raw snapshot payload and uploads it.
// It returns the object name of the stored snapshot.
func (a *Archive) Store(ctx context.Context, performanceID string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("snapshots/%s/%s.json", performanceID, time.Now().UTC().Format("20060102T150405Z"))

	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", objectName, err)
	}

	return objectName, nil
}

// Load retrieves a previously archived snapshot into out.
func (a *Archive) Load(ctx context.Context, objectName string, out any) error {
	reader, err := a.client.GetObject(ctx, a.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot %s: %w", objectName, err)
	}
	defer reader.Close()

	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", objectName, err)
	}
	return nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}
