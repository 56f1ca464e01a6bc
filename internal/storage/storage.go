// Package storage holds the object storage driver for evidence files.
// The bucket itself is owned by the platform; this package only writes,
// presigns, and sweeps keys through its S3-compatible endpoint.
package storage

import (
	"context"
	"io"
	"time"
)

// Driver is the object storage interface the relay depends on.
type Driver interface {
	// Upload stores the contents of r under key.
	Upload(ctx context.Context, key, contentType string, r io.Reader) error

	// PresignGet returns a time-limited signed GET URL for key.
	PresignGet(ctx context.Context, key string, expireIn time.Duration) (string, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// ListWithPrefix lists all keys starting with prefix, with their last
	// modification time.
	ListWithPrefix(ctx context.Context, prefix string) ([]Object, error)

	// PublicURL returns the publicly resolvable URL for key under the
	// bucket's public object URL scheme.
	PublicURL(key string) string
}

// Object is a stored key with its last modification time.
type Object struct {
	Key          string
	LastModified time.Time
}
