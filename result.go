package kbingest

import "time"

// Overall ingestion statuses.
const (
	// StatusSuccess means every requested store write succeeded.
	StatusSuccess = "success"
	// StatusPartial means at least one requested store failed or
	// extraction flagged problems; the document is usable but
	// incomplete.
	StatusPartial = "partial"
	// StatusFailed means extraction itself failed unrecoverably; no
	// store write was attempted.
	StatusFailed = "failed"
)

// Store names used as keys in IngestionResult.Stores.
const (
	StoreRaw    = "raw"
	StoreGraph  = "graph"
	StoreVector = "vector"
)

// StoreResult is the outcome of one store write. Detail carries enough
// context to retry that store without re-running extraction.
type StoreResult struct {
	Requested bool   `json:"requested"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
}

// IngestionResult is the caller-facing outcome of one ingestion. It is
// always returned, even on failure; only pre-extraction fatal errors
// (unsupported format, unreadable source) surface as plain errors
// instead.
type IngestionResult struct {
	Status     string `json:"status"`
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	Backend    string `json:"backend,omitempty"`

	Stores map[string]StoreResult `json:"stores"`

	EntitiesFound      int `json:"entities_found"`
	EntitiesLinked     int `json:"entities_linked"`
	EntitiesCreated    int `json:"entities_created"`
	EntitiesFlagged    int `json:"entities_flagged"`
	RelationshipsFound int `json:"relationships_found"`
	ChunksEmbedded     int `json:"chunks_embedded"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// finalize computes the overall status from per-store outcomes and
// stamps the duration.
func (r *IngestionResult) finalize(start time.Time) {
	r.DurationMS = time.Since(start).Milliseconds()
	if r.Status == StatusFailed {
		return
	}

	status := StatusSuccess
	for _, sr := range r.Stores {
		if sr.Requested && !sr.Success {
			status = StatusPartial
			break
		}
	}
	if len(r.Errors) > 0 {
		status = StatusPartial
	}
	r.Status = status
}
