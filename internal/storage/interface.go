package storage

import (
	"context"
	"io"
)

// Archive is an object store that keeps copies of materialized images.
type Archive interface {
	// Upload stores an object under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string
}

// Materializer turns a remote image URL into a local file.
type Materializer interface {
	Materialize(ctx context.Context, rawURL string) (string, error)
}
