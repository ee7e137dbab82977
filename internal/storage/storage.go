// Package storage provides the object store client used by the upload
// handler: a put-with-metadata operation and presigned read URLs, backed
// by S3.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the storage capability consumed by the upload handler.
// The target bucket is bound at construction. Implementations must be
// safe for concurrent use; the store is built once at startup and shared
// across requests.
type ObjectStore interface {
	// PutObject stores the object under key with the given content type
	// and user metadata. The body is read exactly once from its current
	// position.
	PutObject(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error

	// PresignGet returns a time-limited read URL for an already stored
	// object. Signing is local and performs no network call.
	PresignGet(key string, ttl time.Duration) (string, error)
}
