package extract

import (
	"context"
	"fmt"
	"os"
)

// parseFunc converts one file into plain text and optional markdown.
type parseFunc func(path string) (text string, markdown string, err error)

// ConverterBackend is the fast, free, text-only extraction backend. It
// parses documents natively and never produces entities; the coordinator
// uses it as the fallback when LLM extraction fails, and flags the
// missing entities rather than hiding them.
type ConverterBackend struct {
	parsers map[string]parseFunc
}

// NewConverterBackend creates a converter with all built-in format
// parsers registered.
func NewConverterBackend() *ConverterBackend {
	b := &ConverterBackend{parsers: make(map[string]parseFunc)}
	b.parsers["pdf"] = parsePDF
	b.parsers["docx"] = parseDOCX
	b.parsers["xlsx"] = parseXLSX
	b.parsers["txt"] = parsePlainText
	b.parsers["md"] = parseMarkdownFile
	b.parsers["eml"] = parseEML
	return b
}

func (b *ConverterBackend) Name() string { return "converter" }

func (b *ConverterBackend) SupportedFormats() []string {
	formats := make([]string, 0, len(b.parsers))
	for f := range b.parsers {
		formats = append(formats, f)
	}
	return formats
}

// Extract parses the file into text. Entity options are accepted for
// interface symmetry but ignored: this backend is blind to entities.
func (b *ConverterBackend) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	format := formatOf(path)
	parse, ok := b.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	text, markdown, err := parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", format, err)
	}

	return &Result{
		RawText:    text,
		Markdown:   markdown,
		Backend:    b.Name(),
		Confidence: ConfidenceHigh,
		Metadata: map[string]string{
			"format":             format,
			"entities_supported": "false",
		},
	}, nil
}

// ExtractText passes raw text through unchanged.
func (b *ConverterBackend) ExtractText(ctx context.Context, text string, opts Options) (*Result, error) {
	return &Result{
		RawText:    text,
		Backend:    b.Name(),
		Confidence: ConfidenceHigh,
		Metadata: map[string]string{
			"entities_supported": "false",
		},
	}, nil
}
