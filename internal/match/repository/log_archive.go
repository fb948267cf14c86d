package repository

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"codebattle/internal/common/storage"
)

// LogArchiver stores gzipped replay logs in object storage. Archiving is best
// effort: a failed upload must never block result delivery.
type LogArchiver struct {
	storage storage.ObjectStorage
	bucket  string
}

// NewLogArchiver creates a log archiver writing into the given bucket.
func NewLogArchiver(store storage.ObjectStorage, bucket string) *LogArchiver {
	return &LogArchiver{storage: store, bucket: bucket}
}

// Archive uploads the raw replay log for a match and returns the object key.
func (a *LogArchiver) Archive(ctx context.Context, matchID string, logs []byte) (string, error) {
	if a == nil || a.storage == nil {
		return "", fmt.Errorf("log archiver is not configured")
	}
	if len(logs) == 0 {
		return "", fmt.Errorf("no logs to archive")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(logs); err != nil {
		return "", fmt.Errorf("compress replay log failed: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress replay log failed: %w", err)
	}

	key := fmt.Sprintf("replays/%s.json.gz", matchID)
	err := a.storage.PutObject(ctx, a.bucket, key, &buf, int64(buf.Len()), "application/gzip")
	if err != nil {
		return "", fmt.Errorf("upload replay log failed: %w", err)
	}
	return key, nil
}
