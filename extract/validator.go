package extract

import (
	"fmt"
	"strings"
)

// defaultMinTextLength is the floor below which extracted text is
// considered a failed extraction rather than a short document. The value
// was chosen empirically: real documents shorter than this are headers
// or OCR noise.
const defaultMinTextLength = 50

// truncationMarkers are strings extraction services emit when they gave
// up partway through a document.
var truncationMarkers = []string{
	"[truncated]",
	"[content truncated]",
	"[output truncated]",
	"<truncated>",
}

// Validator cross-checks a backend's output against the source text. It
// is the hallucination guard: entities whose names cannot be located in
// the document are downgraded rather than trusted.
type Validator struct {
	// MinTextLength overrides the extraction floor. Zero means the
	// default.
	MinTextLength int
}

// Validate checks result against source and returns the same result with
// confidence and warning fields updated. Entity-level problems become
// warnings; document-level problems (sub-floor text, truncation) become
// validation errors and mark the whole result invalid.
func (v *Validator) Validate(result *Result, source string) *Result {
	if result == nil {
		return nil
	}

	floor := v.MinTextLength
	if floor == 0 {
		floor = defaultMinTextLength
	}

	text := result.RawText
	if text == "" {
		text = source
	}
	lowerText := strings.ToLower(text)

	if len(strings.TrimSpace(text)) < floor {
		result.ValidationErrors = append(result.ValidationErrors,
			fmt.Sprintf("extracted text length %d below minimum %d", len(strings.TrimSpace(text)), floor))
	}
	for _, marker := range truncationMarkers {
		if strings.Contains(lowerText, marker) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("extracted text contains truncation marker %q", marker))
			break
		}
	}

	// Hallucination guard: every entity name must appear in the raw text,
	// or failing that, in the span it claims to be derived from.
	for i := range result.Entities {
		ent := &result.Entities[i]
		if strings.Contains(lowerText, strings.ToLower(ent.Name)) {
			continue
		}
		if ent.SourceText != "" && strings.Contains(strings.ToLower(ent.SourceText), strings.ToLower(ent.Name)) {
			continue
		}
		ent.Confidence = ConfidenceLow
		result.ValidationWarnings = append(result.ValidationWarnings,
			fmt.Sprintf("entity %q not found in source text", ent.Name))
	}

	// Relationship endpoints should name entities from the same result.
	// Soft invariant: warn, never fail.
	names := make(map[string]bool, len(result.Entities))
	for _, ent := range result.Entities {
		names[strings.ToLower(ent.Name)] = true
	}
	for _, rel := range result.Relationships {
		if !names[strings.ToLower(rel.Source)] {
			result.ValidationWarnings = append(result.ValidationWarnings,
				fmt.Sprintf("relationship source %q does not match any extracted entity", rel.Source))
		}
		if !names[strings.ToLower(rel.Target)] {
			result.ValidationWarnings = append(result.ValidationWarnings,
				fmt.Sprintf("relationship target %q does not match any extracted entity", rel.Target))
		}
	}

	if !result.IsValid() {
		result.Confidence = ConfidenceLow
	}
	return result
}
