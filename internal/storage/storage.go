// Package storage provides transient file staging and durable blob storage.
// It defines the Storage interface (port) for hexagonal architecture with
// implementations for local disk and S3-compatible object stores
// (AWS S3 or Cloudflare R2).
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for transient files and durable blobs.
// Transient files stage downloads during rehosting; Upload persists bytes
// under a key and returns a stable public URL.
type Storage interface {
	// SaveTemp saves data to a transient file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a transient file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified transient files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload stores data durably under the given key and returns the
	// public URL. Returns ErrBlobStoreNotConfigured if no object store
	// is configured.
	Upload(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
