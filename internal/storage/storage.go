// Package storage provides the object store that holds drawing images.
package storage

import (
	"context"
	"io"
)

// ObjectStorage is the backend interface for image blobs. Keys are opaque
// and assigned by the caller.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public URL an image key is served from.
	URL(key string) string
}
