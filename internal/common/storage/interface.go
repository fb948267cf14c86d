package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object storage operations required by the replay
// archive flow. It is intentionally small so we can swap MinIO/AWS-S3
// implementations without touching business logic.
type ObjectStorage interface {
	// PutObject uploads an object from the reader. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, size int64, contentType string) error
}
