package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeBackend is a scriptable Backend for coordinator tests.
type fakeBackend struct {
	name    string
	formats []string
	result  *Result
	err     error
	calls   int
}

func (f *fakeBackend) Name() string               { return f.name }
func (f *fakeBackend) SupportedFormats() []string { return f.formats }

func (f *fakeBackend) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	out.Backend = f.name
	return &out, nil
}

func (f *fakeBackend) ExtractText(ctx context.Context, text string, opts Options) (*Result, error) {
	return f.Extract(ctx, "text.txt", opts)
}

func goodResult() *Result {
	return &Result{
		RawText:    leaseText,
		Confidence: ConfidenceHigh,
		Entities: []ExtractedEntity{
			{Name: "Acme Corporation", Type: "company", Confidence: ConfidenceHigh},
		},
	}
}

func textOnlyResult() *Result {
	return &Result{RawText: leaseText, Confidence: ConfidenceHigh}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCoordinatorPrimarySucceeds(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, result: goodResult()}
	fallback := &fakeBackend{name: "converter", formats: []string{"txt"}, result: textOnlyResult()}
	c := NewCoordinator(nil, primary, fallback)

	result, err := c.Extract(context.Background(), "lease.txt", Options{ExtractEntities: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Backend != "llm" {
		t.Errorf("Backend = %q, want llm", result.Backend)
	}
	if result.Metadata["fallback_used"] == "true" {
		t.Error("primary success must not be annotated as fallback")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestCoordinatorFallsBackOnError(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, err: errors.New("model unavailable")}
	fallback := &fakeBackend{name: "converter", formats: []string{"txt"}, result: textOnlyResult()}
	c := NewCoordinator(nil, primary, fallback)

	result, err := c.Extract(context.Background(), "lease.txt", Options{ExtractEntities: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Backend != "converter" {
		t.Errorf("Backend = %q, want converter", result.Backend)
	}
	if result.Metadata["fallback_used"] != "true" {
		t.Error("fallback use must be annotated in metadata")
	}

	// The converter is blind to entities; that loss must be surfaced.
	found := false
	for _, w := range result.ValidationWarnings {
		if strings.Contains(w, "entities not extracted") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'entities not extracted' warning, got %v", result.ValidationWarnings)
	}
}

func TestCoordinatorFallsBackOnInvalidResult(t *testing.T) {
	// The primary returns text below the validation floor.
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, result: &Result{RawText: "stub", Confidence: ConfidenceHigh}}
	fallback := &fakeBackend{name: "converter", formats: []string{"txt"}, result: textOnlyResult()}
	c := NewCoordinator(nil, primary, fallback)

	result, err := c.Extract(context.Background(), "lease.txt", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Backend != "converter" {
		t.Errorf("Backend = %q, want converter", result.Backend)
	}
}

func TestCoordinatorAllBackendsFailed(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, err: errors.New("down")}
	fallback := &fakeBackend{name: "converter", formats: []string{"txt"}, err: errors.New("also down")}
	c := NewCoordinator(nil, primary, fallback)

	_, err := c.Extract(context.Background(), "lease.txt", Options{})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestCoordinatorUnsupportedFormat(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, result: goodResult()}
	c := NewCoordinator(nil, primary)

	_, err := c.Extract(context.Background(), "diagram.svg", Options{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	if primary.calls != 0 {
		t.Error("unsupported format must not reach the backend")
	}
}

func TestCoordinatorSourceUnavailableIsFatal(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, err: ErrSourceUnavailable}
	fallback := &fakeBackend{name: "converter", formats: []string{"txt"}, result: textOnlyResult()}
	c := NewCoordinator(nil, primary, fallback)

	_, err := c.Extract(context.Background(), "missing.txt", Options{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if fallback.calls != 0 {
		t.Error("a missing file must not be retried on the fallback")
	}
}

func TestCoordinatorBatchDoesNotAbort(t *testing.T) {
	// The real converter backend against real files: one good, one missing.
	good := writeTempFile(t, "lease.txt", leaseText)
	missing := filepath.Join(t.TempDir(), "nope.txt")

	c := NewCoordinator(nil, NewConverterBackend())
	results := c.ExtractBatch(context.Background(), []string{good, missing, good}, Options{})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].IsValid() || !results[2].IsValid() {
		t.Error("good items must remain valid despite a failing sibling")
	}
	bad := results[1]
	if bad.IsValid() {
		t.Error("failed item must be invalid")
	}
	if bad.Confidence != ConfidenceLow {
		t.Errorf("failed item confidence = %q, want %q", bad.Confidence, ConfidenceLow)
	}
	if len(bad.ValidationErrors) == 0 {
		t.Error("failed item must carry the error in ValidationErrors")
	}
}

func TestCoordinatorExtractText(t *testing.T) {
	primary := &fakeBackend{name: "llm", formats: []string{"txt"}, result: goodResult()}
	c := NewCoordinator(nil, primary)

	result, err := c.ExtractText(context.Background(), leaseText, Options{ExtractEntities: true})
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Errorf("got %d entities, want 1", len(result.Entities))
	}
}
