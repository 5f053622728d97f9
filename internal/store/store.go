package store

import (
	"context"
	"errors"
)

var (
	// ErrWrite indicates the storage backend rejected or failed a write.
	ErrWrite = errors.New("object store write failed")
	// ErrRead indicates an object could not be fetched, either because it no
	// longer exists or because the URL does not belong to this store.
	ErrRead = errors.New("object store read failed")
)

// Store is the object storage capability used by the pipelines.
type Store interface {
	// Put writes data under path and returns the path. Writes are never
	// upserts: a path collision fails instead of overwriting.
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// PublicURL derives the externally fetchable URL for a stored path.
	PublicURL(path string) string
	// PathFromURL recovers the storage path from a previously issued public
	// URL. Pipelines use this instead of parsing URL structure themselves.
	PathFromURL(url string) (string, error)
	// Get fetches the bytes of an object by its public URL.
	Get(ctx context.Context, url string) ([]byte, error)
}
