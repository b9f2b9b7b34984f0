// Package filestore defines the object storage interface tablegate uses to
// persist schema snapshots.
//
// Providers (currently MinIO, which also speaks to any S3-compatible
// service) implement Store. Callers depend only on this package, never on
// a provider package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.PutObject(ctx, "snapshots/shop.json", bytes.NewReader(b), int64(len(b)), "application/json")
package filestore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	// Key is the full object path within the bucket.
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time
}

// Store is the interface every object storage provider implements.
// All keys are relative to the configured bucket.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// PutObject writes size bytes from r under key, replacing any previous
	// object.
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// GetObject opens the object at key. The caller MUST close it.
	// A missing key yields an errs.ErrKindNotFound error.
	GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// RemoveObject deletes the object at key. Removing a missing key is not
	// an error.
	RemoveObject(ctx context.Context, key string) error

	// ListObjects returns every object whose key starts with prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
