// Package archive stores the raw/markdown copy of ingested documents,
// keyed by tenant and content-hash document ID. Backends: local
// filesystem for development, S3 for deployment.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
)

// ErrNotFound is returned when no archived copy exists for a key.
var ErrNotFound = errors.New("archive: document not found")

// Storage is the raw-store contract. Implementations must be
// idempotent on Put: writing the same key twice overwrites in place
// and never duplicates.
type Storage interface {
	// Put stores a document's text under tenantID/documentID.
	Put(ctx context.Context, tenantID, documentID, name string, data io.Reader) error

	// Get retrieves an archived document. The caller closes the reader.
	Get(ctx context.Context, tenantID, documentID, name string) (io.ReadCloser, error)

	// Exists reports whether any copy is archived under the key.
	Exists(ctx context.Context, tenantID, documentID string) (bool, error)

	// Delete removes all archived copies for a document.
	Delete(ctx context.Context, tenantID, documentID string) error
}

// Standard object names within a document's archive prefix.
const (
	RawName      = "raw.txt"
	MarkdownName = "document.md"
	MetadataName = "metadata.json"
)

// Type selects the storage backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config holds backend selection and credentials.
type Config struct {
	Type      Type
	LocalPath string // for local storage
	S3Bucket  string
	S3Region  string
	AccessKey string
	SecretKey string
}

// New creates a storage backend from config.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocal(cfg.LocalPath)
	case TypeS3:
		return NewS3(cfg)
	default:
		return nil, fmt.Errorf("archive: unknown storage type %q", cfg.Type)
	}
}

// objectKey builds the storage key for one object of one document.
func objectKey(tenantID, documentID, name string) string {
	return path.Join(tenantID, documentID, name)
}

// documentPrefix is the key prefix holding all of a document's objects.
func documentPrefix(tenantID, documentID string) string {
	return path.Join(tenantID, documentID)
}
