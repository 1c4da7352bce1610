package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	return l
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := l.Put(ctx, "t1", "doc1", MarkdownName, strings.NewReader("# Lease\n\nterms")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	rc, err := l.Get(ctx, "t1", "doc1", MarkdownName)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading archived copy: %v", err)
	}
	if string(data) != "# Lease\n\nterms" {
		t.Errorf("archived content = %q", data)
	}
}

func TestLocalPutOverwritesInPlace(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	l.Put(ctx, "t1", "doc1", RawName, strings.NewReader("first"))
	if err := l.Put(ctx, "t1", "doc1", RawName, strings.NewReader("second")); err != nil {
		t.Fatalf("Put() overwrite error: %v", err)
	}

	rc, err := l.Get(ctx, "t1", "doc1", RawName)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Errorf("content = %q, want overwrite", data)
	}
}

func TestLocalExists(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	ok, err := l.Exists(ctx, "t1", "doc1")
	if err != nil || ok {
		t.Fatalf("Exists() before put = (%v, %v), want (false, nil)", ok, err)
	}

	l.Put(ctx, "t1", "doc1", RawName, strings.NewReader("x"))
	ok, err = l.Exists(ctx, "t1", "doc1")
	if err != nil || !ok {
		t.Fatalf("Exists() after put = (%v, %v), want (true, nil)", ok, err)
	}

	// Existence is per tenant.
	ok, _ = l.Exists(ctx, "t2", "doc1")
	if ok {
		t.Error("document visible under wrong tenant")
	}
}

func TestLocalGetMissing(t *testing.T) {
	l := newTestLocal(t)
	_, err := l.Get(context.Background(), "t1", "nope", RawName)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() missing = %v, want ErrNotFound", err)
	}
}

func TestLocalDelete(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	l.Put(ctx, "t1", "doc1", RawName, strings.NewReader("x"))
	l.Put(ctx, "t1", "doc1", MarkdownName, strings.NewReader("y"))

	if err := l.Delete(ctx, "t1", "doc1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	ok, _ := l.Exists(ctx, "t1", "doc1")
	if ok {
		t.Error("document still exists after delete")
	}
	// Deleting a missing document is not an error.
	if err := l.Delete(ctx, "t1", "doc1"); err != nil {
		t.Errorf("repeat Delete() error: %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(Config{Type: TypeLocal, LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New(local) error: %v", err)
	}
	if _, ok := s.(*Local); !ok {
		t.Errorf("New(local) = %T, want *Local", s)
	}

	if _, err := New(Config{Type: "ftp"}); err == nil {
		t.Error("New(ftp) should fail")
	}
}
