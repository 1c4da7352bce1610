package kbingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwestall/kbingest/archive"
	"github.com/mwestall/kbingest/store"
)

// SearchSimilar embeds the query and returns the tenant's k most
// similar chunks.
func (p *Pipeline) SearchSimilar(ctx context.Context, tenantID, query string, k int) ([]store.SearchResult, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if query == "" {
		return nil, ErrEmptyInput
	}
	if k <= 0 {
		k = 10
	}

	vecs, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return p.store.SearchSimilar(ctx, tenantID, vecs[0], k)
}

// GetDocument returns a tenant's document registry row.
func (p *Pipeline) GetDocument(ctx context.Context, tenantID, documentID string) (*store.Document, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	doc, err := p.store.GetDocument(ctx, tenantID, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// ListDocuments returns all of a tenant's documents.
func (p *Pipeline) ListDocuments(ctx context.Context, tenantID string) ([]store.Document, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return p.store.ListDocuments(ctx, tenantID)
}

// DeleteDocument removes a document from every store: its chunks,
// embeddings, links, relationships, episodes, registry row, and
// archived objects. Canonical entities survive; other documents may
// reference them.
func (p *Pipeline) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if _, err := p.store.GetDocument(ctx, tenantID, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}
	if err := p.store.DeleteDocument(ctx, tenantID, documentID); err != nil {
		return err
	}
	if err := p.archive.Delete(ctx, tenantID, documentID); err != nil && !errors.Is(err, archive.ErrNotFound) {
		return fmt.Errorf("deleting archived objects: %w", err)
	}
	return nil
}

// AddEntity registers a canonical entity directly, bypassing document
// ingestion. Useful for seeding a tenant's known companies and
// properties before the first document arrives.
func (p *Pipeline) AddEntity(ctx context.Context, e store.Entity) (int64, error) {
	if e.TenantID == "" {
		return 0, ErrTenantRequired
	}
	if e.Name == "" {
		return 0, ErrEmptyInput
	}
	id, created, err := p.store.CreateEntity(ctx, e)
	if err != nil {
		return 0, err
	}
	if created {
		p.invalidateResolver(e.TenantID)
	}
	return id, nil
}

// EntitiesNeedingReview lists a tenant's entities flagged during
// ingestion for ambiguous matches.
func (p *Pipeline) EntitiesNeedingReview(ctx context.Context, tenantID string) ([]store.Entity, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return p.store.EntitiesNeedingReview(ctx, tenantID)
}

// ResolveEntityReview clears an entity's review flag, confirming it as
// canonical.
func (p *Pipeline) ResolveEntityReview(ctx context.Context, tenantID string, entityID int64) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if err := p.store.ResolveEntityReview(ctx, tenantID, entityID); err != nil {
		return err
	}
	p.invalidateResolver(tenantID)
	return nil
}

// TenantStats reports per-tenant row counts across stores.
func (p *Pipeline) TenantStats(ctx context.Context, tenantID string) (*store.Stats, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return p.store.TenantStats(ctx, tenantID)
}
