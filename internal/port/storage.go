package port

import (
	"context"
	"io"
	"time"
)

// PutInput describes a certificate object upload.
type PutInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// ObjectStorage defines the contract for certificate document storage.
type ObjectStorage interface {
	Put(ctx context.Context, input PutInput) error
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, bucket, key string) error
}
