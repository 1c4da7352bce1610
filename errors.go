package kbingest

import "errors"

var (
	// ErrTenantRequired is returned when an operation is missing its
	// tenant identifier.
	ErrTenantRequired = errors.New("kbingest: tenant id required")

	// ErrEmptyInput is returned when neither a document nor text is
	// provided for ingestion.
	ErrEmptyInput = errors.New("kbingest: no document or text provided")

	// ErrDocumentNotFound is returned when a document ID does not exist
	// for the tenant.
	ErrDocumentNotFound = errors.New("kbingest: document not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("kbingest: invalid configuration")
)
