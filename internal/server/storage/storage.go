// Package storage moves media bytes between the temp and permanent areas of
// the content root. Paths are slash-separated and relative to the root.
package storage

import (
	"context"
	"io"
)

// Store is implemented by the filesystem and S3 backends.
type Store interface {
	// Write stores body at rel, creating parent folders, and returns the
	// number of bytes written.
	Write(ctx context.Context, rel string, body io.Reader) (int64, error)
	// Move relocates src to dst, replacing dst if it exists. A missing src
	// yields an error wrapping common.ErrorNotFound.
	Move(ctx context.Context, src, dst string) error
	Exists(ctx context.Context, rel string) (bool, error)
	// Remove deletes rel. Removing a missing file is not an error.
	Remove(ctx context.Context, rel string) error
}
