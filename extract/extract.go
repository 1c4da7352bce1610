package extract

import (
	"context"
	"strings"
)

// Confidence is the three-level trust score attached to an extraction
// result or to an individual extracted entity.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TypeUnknown is the fallback for entity types a backend reports that
// are not in the registry.
const TypeUnknown = "unknown"

// knownEntityTypes is the registry of entity types the pipeline
// understands. Backends may emit anything; NormalizeEntityType folds
// unrecognised values into TypeUnknown so downstream matching stays
// checkable against a closed set.
var knownEntityTypes = map[string]bool{
	"person":       true,
	"company":      true,
	"organization": true,
	"property":     true,
	"contact":      true,
	"address":      true,
	"date":         true,
	"amount":       true,
	"medication":   true,
	"document":     true,
}

// NormalizeEntityType lowercases and underscores a backend-reported
// entity type, returning TypeUnknown if it is not registered.
func NormalizeEntityType(t string) string {
	t = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), " ", "_")
	if knownEntityTypes[t] {
		return t
	}
	return TypeUnknown
}

// KnownEntityTypes returns the registered entity types.
func KnownEntityTypes() []string {
	types := make([]string, 0, len(knownEntityTypes))
	for t := range knownEntityTypes {
		types = append(types, t)
	}
	return types
}

// ExtractedEntity is a single entity a backend pulled out of a document.
type ExtractedEntity struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Value      string            `json:"value,omitempty"`
	Confidence Confidence        `json:"confidence"`
	// SourceText is the verbatim span the entity was derived from; the
	// validator falls back to it when the name is not literally present
	// in the raw text.
	SourceText string            `json:"source_text,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExtractedRelationship connects two extracted entities by name.
type ExtractedRelationship struct {
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	RelationType string            `json:"relation_type"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Result is what a backend produces from one document. It is created
// once per extraction attempt; only the Validator mutates it afterwards,
// and only its confidence and warning fields.
type Result struct {
	RawText       string                  `json:"raw_text"`
	Markdown      string                  `json:"markdown,omitempty"`
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
	Metadata      map[string]string       `json:"metadata,omitempty"`
	Backend       string                  `json:"backend"`
	Confidence    Confidence              `json:"confidence"`

	ValidationErrors   []string `json:"validation_errors,omitempty"`
	ValidationWarnings []string `json:"validation_warnings,omitempty"`
}

// IsValid reports whether the result passed validation. It is true
// exactly when ValidationErrors is empty.
func (r *Result) IsValid() bool {
	return len(r.ValidationErrors) == 0
}

// Options controls what a backend extracts.
type Options struct {
	// ExtractEntities asks the backend for structured entities and
	// relationships in addition to text.
	ExtractEntities bool
	// EntityTypes limits extraction to the given types. Empty means all
	// registered types.
	EntityTypes []string
}

// Backend converts one document into text plus optional structured
// entities. Implementations declare their format support up front and
// must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in results and logs.
	Name() string

	// SupportedFormats returns lowercase extensions without the dot.
	SupportedFormats() []string

	// Extract processes a single file. It fails with ErrUnsupportedFormat
	// for extensions outside SupportedFormats and ErrSourceUnavailable if
	// the file cannot be read.
	Extract(ctx context.Context, path string, opts Options) (*Result, error)

	// ExtractText processes raw text directly, bypassing file parsing.
	ExtractText(ctx context.Context, text string, opts Options) (*Result, error)
}

// ExtractBatch runs a backend over several files. A failing item yields
// a low-confidence Result carrying the error as a validation error; the
// remaining items still run.
func ExtractBatch(ctx context.Context, b Backend, paths []string, opts Options) []*Result {
	results := make([]*Result, len(paths))
	for i, path := range paths {
		res, err := b.Extract(ctx, path, opts)
		if err != nil {
			res = &Result{
				Backend:          b.Name(),
				Confidence:       ConfidenceLow,
				Metadata:         map[string]string{"source": path},
				ValidationErrors: []string{err.Error()},
			}
		}
		results[i] = res
	}
	return results
}

// formatOf returns the lowercase extension of a path without the dot.
func formatOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

// supportsFormat reports whether format is in the backend's support set.
func supportsFormat(b Backend, format string) bool {
	for _, f := range b.SupportedFormats() {
		if f == format {
			return true
		}
	}
	return false
}
