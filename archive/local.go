package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores archived documents under a base directory, one
// subdirectory per tenant/document.
type Local struct {
	base string
}

// NewLocal creates a filesystem-backed archive rooted at base.
func NewLocal(base string) (*Local, error) {
	if base == "" {
		base = "./data/archive"
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("archive: creating base directory: %w", err)
	}
	return &Local{base: base}, nil
}

func (l *Local) Put(ctx context.Context, tenantID, documentID, name string, data io.Reader) error {
	dir := filepath.Join(l.base, filepath.FromSlash(documentPrefix(tenantID, documentID)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("archive: creating document directory: %w", err)
	}

	// Write to a temp file then rename so readers never see a
	// half-written object.
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("archive: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("archive: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("archive: finalizing %s: %w", name, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, tenantID, documentID, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.base, filepath.FromSlash(objectKey(tenantID, documentID, name))))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", name, err)
	}
	return f, nil
}

func (l *Local) Exists(ctx context.Context, tenantID, documentID string) (bool, error) {
	dir := filepath.Join(l.base, filepath.FromSlash(documentPrefix(tenantID, documentID)))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (l *Local) Delete(ctx context.Context, tenantID, documentID string) error {
	dir := filepath.Join(l.base, filepath.FromSlash(documentPrefix(tenantID, documentID)))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("archive: deleting document: %w", err)
	}
	return nil
}
