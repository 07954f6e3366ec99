// Package storage provides storage backends for build artifacts retained by
// moliord: cloned source trees, per-build buildout directories, and anything
// handed off to the APT backend for publishing.
package storage

import (
	"context"
	"io"
	"time"
)

// Backend defines the interface for artifact storage backends.
type Backend interface {
	// Upload uploads data to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete deletes an object from storage. Deleting a missing object is not
	// an error, matching rebuild's erase-buildout semantics.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetInfo retrieves metadata for an object
	GetInfo(ctx context.Context, key string) (*ObjectInfo, error)

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// LocalPathResolver is optionally implemented by backends that store objects
// on the local filesystem. It allows callers needing a plain filesystem path
// (e.g. passing a buildout directory to an external build-node collaborator)
// to avoid a copy.
type LocalPathResolver interface {
	ResolvePath(key string) string
}

// ObjectInfo holds metadata about a storage object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Config holds the storage configuration.
type Config struct {
	// Type is the storage backend type: "s3" or "local"
	Type string

	Local LocalConfig
	S3    S3Config
}

// DefaultConfig returns a default storage configuration (local filesystem).
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "/var/lib/molior",
		},
	}
}

// New creates a new storage backend based on configuration.
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return NewLocal(cfg.Local)
	}
}
