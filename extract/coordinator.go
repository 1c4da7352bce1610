package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Coordinator owns the extraction fallback chain. It attempts backends
// in the configured order, validating after each, and never silently
// promotes a fallback: results carry an annotation when the primary was
// bypassed, and a warning when a text-only fallback served a request
// that asked for entities.
type Coordinator struct {
	backends  []Backend
	validator *Validator
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator over an ordered backend list. The
// first backend is the primary; the rest are fallbacks in order.
func NewCoordinator(validator *Validator, backends ...Backend) *Coordinator {
	if validator == nil {
		validator = &Validator{}
	}
	return &Coordinator{
		backends:  backends,
		validator: validator,
		logger:    slog.Default().With("component", "extract-coordinator"),
	}
}

// Extract runs the fallback chain over a file. Backends that do not
// support the file's format are skipped without counting as failures;
// ErrUnsupportedFormat is returned only when no backend supports it.
func (c *Coordinator) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	format := formatOf(path)

	attempted := false
	var failures []string
	for i, backend := range c.backends {
		if !supportsFormat(backend, format) {
			continue
		}
		attempted = true

		result, err := c.attempt(ctx, backend, opts, func() (*Result, error) {
			return backend.Extract(ctx, path, opts)
		})
		if err != nil {
			if errors.Is(err, ErrSourceUnavailable) {
				return nil, err
			}
			failures = append(failures, fmt.Sprintf("%s: %v", backend.Name(), err))
			continue
		}

		if i > 0 {
			c.annotateFallback(result, opts, failures)
		}
		return result, nil
	}

	if !attempted {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil, fmt.Errorf("%w: %s", ErrAllBackendsFailed, strings.Join(failures, "; "))
}

// ExtractText runs the fallback chain over raw text.
func (c *Coordinator) ExtractText(ctx context.Context, text string, opts Options) (*Result, error) {
	var failures []string
	for i, backend := range c.backends {
		result, err := c.attempt(ctx, backend, opts, func() (*Result, error) {
			return backend.ExtractText(ctx, text, opts)
		})
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", backend.Name(), err))
			continue
		}

		if i > 0 {
			c.annotateFallback(result, opts, failures)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAllBackendsFailed, strings.Join(failures, "; "))
}

// attempt runs one backend and validates its output. A validation
// failure is reported as an error so the chain moves on.
func (c *Coordinator) attempt(ctx context.Context, backend Backend, opts Options, run func() (*Result, error)) (*Result, error) {
	result, err := run()
	if err != nil {
		c.logger.Warn("extraction backend failed", "backend", backend.Name(), "error", err)
		return nil, err
	}

	result = c.validator.Validate(result, result.RawText)
	if !result.IsValid() {
		c.logger.Warn("extraction failed validation",
			"backend", backend.Name(), "errors", result.ValidationErrors)
		return nil, fmt.Errorf("validation failed: %s", strings.Join(result.ValidationErrors, "; "))
	}
	return result, nil
}

func (c *Coordinator) annotateFallback(result *Result, opts Options, failures []string) {
	if result.Metadata == nil {
		result.Metadata = make(map[string]string)
	}
	result.Metadata["fallback_used"] = "true"
	result.ValidationWarnings = append(result.ValidationWarnings,
		fmt.Sprintf("primary extraction failed, %s backend used instead (%s)",
			result.Backend, strings.Join(failures, "; ")))

	if opts.ExtractEntities && len(result.Entities) == 0 {
		result.ValidationWarnings = append(result.ValidationWarnings,
			"entities not extracted: fallback backend does not support entity extraction")
		if result.Confidence == ConfidenceHigh {
			result.Confidence = ConfidenceMedium
		}
	}
}

// ExtractBatch runs the fallback chain over several files without
// aborting on individual failures.
func (c *Coordinator) ExtractBatch(ctx context.Context, paths []string, opts Options) []*Result {
	results := make([]*Result, len(paths))
	for i, path := range paths {
		res, err := c.Extract(ctx, path, opts)
		if err != nil {
			res = &Result{
				Backend:          "coordinator",
				Confidence:       ConfidenceLow,
				Metadata:         map[string]string{"source": path},
				ValidationErrors: []string{err.Error()},
			}
		}
		results[i] = res
	}
	return results
}
