package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a remote dataset or artifact object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage captures the S3-compatible operations the pipeline needs:
// pulling dataset files down and pushing generated artifacts back up.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}
