package extract

import "errors"

var (
	// ErrUnsupportedFormat is returned when a file's extension is outside
	// the backend's declared support set. No extraction is attempted.
	ErrUnsupportedFormat = errors.New("extract: unsupported document format")

	// ErrSourceUnavailable is returned when the source file is missing or
	// unreadable.
	ErrSourceUnavailable = errors.New("extract: source file unavailable")

	// ErrAllBackendsFailed is returned by the Coordinator when every
	// configured backend raised or failed validation.
	ErrAllBackendsFailed = errors.New("extract: all extraction backends failed")

	// ErrNotConfigured is returned when a backend requires an external
	// service that has not been configured.
	ErrNotConfigured = errors.New("extract: backend not configured")
)
