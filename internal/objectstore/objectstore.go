// Package objectstore stores uploaded file bytes and hands out download URLs.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ProgressFunc receives the bytes written so far and the expected total.
type ProgressFunc func(written, total int64)

// ObjectStore is the file byte store.
type ObjectStore interface {
	// Upload writes size bytes from r to path.
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error
	// URL returns a download URL for an uploaded object.
	URL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}
