package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

const testDim = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), testDim)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := Document{
		TenantID:   "t1",
		DocumentID: "abc123",
		Filename:   "Acme_RSP_Lease_2024-03-01.pdf",
		Format:     "pdf",
		Status:     "stored",
	}
	id1, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	doc.Status = "partial"
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("UpsertDocument() second call error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("re-upsert created a new row: %d vs %d", id1, id2)
	}

	got, err := s.GetDocument(ctx, "t1", "abc123")
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.Status != "partial" {
		t.Errorf("status = %q, want updated to partial", got.Status)
	}

	docs, err := s.ListDocuments(ctx, "t1")
	if err != nil {
		t.Fatalf("ListDocuments() error: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d documents, want 1", len(docs))
	}
}

func TestUpsertDocumentIDStableAfterOtherInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docA := Document{TenantID: "t1", DocumentID: "aaa111", Filename: "a.pdf", Format: "pdf", Status: "stored"}
	docB := Document{TenantID: "t1", DocumentID: "bbb222", Filename: "b.pdf", Format: "pdf", Status: "stored"}

	idA, err := s.UpsertDocument(ctx, docA)
	if err != nil {
		t.Fatalf("UpsertDocument(A) error: %v", err)
	}
	idB, err := s.UpsertDocument(ctx, docB)
	if err != nil {
		t.Fatalf("UpsertDocument(B) error: %v", err)
	}
	if idA == idB {
		t.Fatalf("distinct documents share row id %d", idA)
	}

	// Re-upserting A takes the UPDATE branch; the returned id must be
	// A's row, not the connection's most recent insert (B).
	docA.Status = "partial"
	idA2, err := s.UpsertDocument(ctx, docA)
	if err != nil {
		t.Fatalf("UpsertDocument(A) update error: %v", err)
	}
	if idA2 != idA {
		t.Errorf("update branch returned id %d, want %d", idA2, idA)
	}
}

func TestDocumentTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same content hash under two tenants must be two rows.
	for _, tenant := range []string{"t1", "t2"} {
		if _, err := s.UpsertDocument(ctx, Document{
			TenantID: tenant, DocumentID: "samehash", Filename: "a.txt", Format: "txt", Status: "stored",
		}); err != nil {
			t.Fatalf("UpsertDocument(%s) error: %v", tenant, err)
		}
	}

	if _, err := s.GetDocument(ctx, "t3", "samehash"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("cross-tenant read returned %v, want sql.ErrNoRows", err)
	}
	docs, _ := s.ListDocuments(ctx, "t1")
	if len(docs) != 1 {
		t.Errorf("tenant t1 sees %d documents, want 1", len(docs))
	}
}

func TestCreateEntityConvergesOnUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := Entity{
		TenantID:   "t1",
		EntityType: "company",
		Name:       "Acme Corporation",
		Aliases:    []string{"Acme"},
		Shorthand:  "ACM",
	}
	id1, created, err := s.CreateEntity(ctx, e)
	if err != nil {
		t.Fatalf("CreateEntity() error: %v", err)
	}
	if !created {
		t.Fatal("first insert reported created=false")
	}

	// Second insert with the same identity must land on the same row.
	id2, created, err := s.CreateEntity(ctx, e)
	if err != nil {
		t.Fatalf("CreateEntity() second call error: %v", err)
	}
	if created || id2 != id1 {
		t.Errorf("duplicate insert got (id=%d created=%v), want (id=%d created=false)", id2, created, id1)
	}

	// Same name under another tenant is a distinct entity.
	e.TenantID = "t2"
	id3, created, err := s.CreateEntity(ctx, e)
	if err != nil {
		t.Fatalf("CreateEntity() other tenant error: %v", err)
	}
	if !created || id3 == id1 {
		t.Errorf("other tenant got (id=%d created=%v), want a fresh row", id3, created)
	}
}

func TestEntitiesByTenantRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.CreateEntity(ctx, Entity{
		TenantID:   "t1",
		EntityType: "property",
		Name:       "Riverside Plaza",
		Aliases:    []string{"RSP", "The Plaza"},
		Shorthand:  "RSP",
		Address:    "123 Main Street, Springfield",
		Street:     "Main Street",
	}); err != nil {
		t.Fatalf("CreateEntity() error: %v", err)
	}

	entities, err := s.EntitiesByTenant(ctx, "t1")
	if err != nil {
		t.Fatalf("EntitiesByTenant() error: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	e := entities[0]
	if e.Name != "Riverside Plaza" || e.Type != "property" || e.TenantID != "t1" {
		t.Errorf("unexpected entity: %+v", e)
	}
	if len(e.Aliases) != 2 || e.Aliases[0] != "RSP" {
		t.Errorf("aliases = %v, want [RSP The Plaza]", e.Aliases)
	}
	if e.Street != "Main Street" {
		t.Errorf("street = %q", e.Street)
	}

	other, _ := s.EntitiesByTenant(ctx, "t2")
	if len(other) != 0 {
		t.Errorf("tenant t2 sees %d entities, want 0", len(other))
	}
}

func TestNeedsReviewLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.CreateEntity(ctx, Entity{
		TenantID: "t1", EntityType: "company", Name: "Acme Corp", NeedsReview: true,
	})
	if err != nil {
		t.Fatalf("CreateEntity() error: %v", err)
	}

	flagged, err := s.EntitiesNeedingReview(ctx, "t1")
	if err != nil {
		t.Fatalf("EntitiesNeedingReview() error: %v", err)
	}
	if len(flagged) != 1 || flagged[0].ID != id {
		t.Fatalf("flagged = %+v, want entity %d", flagged, id)
	}

	if err := s.ResolveEntityReview(ctx, "t1", id); err != nil {
		t.Fatalf("ResolveEntityReview() error: %v", err)
	}
	flagged, _ = s.EntitiesNeedingReview(ctx, "t1")
	if len(flagged) != 0 {
		t.Errorf("still flagged after resolution: %+v", flagged)
	}
}

func TestDocumentEntityProvenance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eid, _, err := s.CreateEntity(ctx, Entity{TenantID: "t1", EntityType: "person", Name: "Jane Smith"})
	if err != nil {
		t.Fatalf("CreateEntity() error: %v", err)
	}

	if _, err := s.LinkDocumentEntity(ctx, DocumentEntity{
		TenantID:   "t1",
		DocumentID: "doc1",
		EntityID:   eid,
		Decision:   "create_new",
		SourceText: "leases Suite 400 to Jane Smith",
	}); err != nil {
		t.Fatalf("LinkDocumentEntity() error: %v", err)
	}

	links, err := s.DocumentEntities(ctx, "t1", "doc1")
	if err != nil {
		t.Fatalf("DocumentEntities() error: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	if links[0].EntityID != eid || links[0].Decision != "create_new" {
		t.Errorf("unexpected link: %+v", links[0])
	}
}

func TestRelationshipsAndEpisodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src, _, _ := s.CreateEntity(ctx, Entity{TenantID: "t1", EntityType: "company", Name: "Acme Corporation"})
	dst, _, _ := s.CreateEntity(ctx, Entity{TenantID: "t1", EntityType: "property", Name: "Suite 400"})

	if _, err := s.InsertRelationship(ctx, Relationship{
		TenantID:       "t1",
		SourceEntityID: src,
		TargetEntityID: dst,
		RelationType:   "leases",
		DocumentID:     "doc1",
	}); err != nil {
		t.Fatalf("InsertRelationship() error: %v", err)
	}

	rels, err := s.RelationshipsByDocument(ctx, "t1", "doc1")
	if err != nil {
		t.Fatalf("RelationshipsByDocument() error: %v", err)
	}
	if len(rels) != 1 || rels[0].RelationType != "leases" {
		t.Fatalf("rels = %+v", rels)
	}

	epID, err := s.AddEpisode(ctx, Episode{
		TenantID:    "t1",
		DocumentID:  "doc1",
		Summary:     "lease agreement mentioning 2 entities",
		EntityCount: 2,
	})
	if err != nil {
		t.Fatalf("AddEpisode() error: %v", err)
	}
	if epID == "" {
		t.Fatal("AddEpisode() returned empty ID")
	}

	eps, err := s.EpisodesByDocument(ctx, "t1", "doc1")
	if err != nil {
		t.Fatalf("EpisodesByDocument() error: %v", err)
	}
	if len(eps) != 1 || eps[0].ID != epID || eps[0].EntityCount != 2 {
		t.Errorf("episodes = %+v", eps)
	}
}

func TestReplaceChunksReplacesNotAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.ReplaceChunks(ctx, "t1", "doc1", []string{"first chunk", "second chunk"})
	if err != nil {
		t.Fatalf("ReplaceChunks() error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	for _, id := range ids {
		if err := s.InsertEmbedding(ctx, id, []float32{1, 0, 0, 0}); err != nil {
			t.Fatalf("InsertEmbedding() error: %v", err)
		}
	}

	ids2, err := s.ReplaceChunks(ctx, "t1", "doc1", []string{"replacement"})
	if err != nil {
		t.Fatalf("ReplaceChunks() second call error: %v", err)
	}
	if len(ids2) != 1 {
		t.Fatalf("got %d ids, want 1", len(ids2))
	}

	chunks, err := s.ChunksByDocument(ctx, "t1", "doc1")
	if err != nil {
		t.Fatalf("ChunksByDocument() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "replacement" {
		t.Errorf("chunks = %+v, want single replacement chunk", chunks)
	}
	if chunks[0].ContentHash == "" {
		t.Error("chunk missing content hash")
	}
}

func TestSearchSimilarScopedToTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := func(tenant, doc, content string, vec []float32) {
		t.Helper()
		if _, err := s.UpsertDocument(ctx, Document{
			TenantID: tenant, DocumentID: doc, Filename: doc + ".txt", Format: "txt", Status: "stored",
		}); err != nil {
			t.Fatalf("UpsertDocument() error: %v", err)
		}
		ids, err := s.ReplaceChunks(ctx, tenant, doc, []string{content})
		if err != nil {
			t.Fatalf("ReplaceChunks() error: %v", err)
		}
		if err := s.InsertEmbedding(ctx, ids[0], vec); err != nil {
			t.Fatalf("InsertEmbedding() error: %v", err)
		}
	}

	seed("t1", "d1", "t1 near", []float32{1, 0, 0, 0})
	seed("t1", "d2", "t1 far", []float32{0, 0, 0, 1})
	seed("t2", "d3", "t2 nearest", []float32{1, 0.01, 0, 0})

	results, err := s.SearchSimilar(ctx, "t1", []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].DocumentID != "d1" {
		t.Errorf("top result = %+v, want d1", results[0])
	}
	for _, r := range results {
		if r.DocumentID == "d3" {
			t.Error("tenant t2's chunk leaked into t1's results")
		}
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertDocument(ctx, Document{
		TenantID: "t1", DocumentID: "doc1", Filename: "a.txt", Format: "txt", Status: "stored",
	}); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}
	eid, _, _ := s.CreateEntity(ctx, Entity{TenantID: "t1", EntityType: "company", Name: "Acme Corporation"})
	s.LinkDocumentEntity(ctx, DocumentEntity{TenantID: "t1", DocumentID: "doc1", EntityID: eid, Decision: "link_existing"})
	s.InsertRelationship(ctx, Relationship{TenantID: "t1", SourceEntityID: eid, TargetEntityID: eid, RelationType: "mentions", DocumentID: "doc1"})
	s.AddEpisode(ctx, Episode{TenantID: "t1", DocumentID: "doc1", Summary: "x"})
	ids, _ := s.ReplaceChunks(ctx, "t1", "doc1", []string{"content"})
	s.InsertEmbedding(ctx, ids[0], []float32{1, 0, 0, 0})

	if err := s.DeleteDocument(ctx, "t1", "doc1"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}

	if _, err := s.GetDocument(ctx, "t1", "doc1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("document still present: %v", err)
	}
	stats, err := s.TenantStats(ctx, "t1")
	if err != nil {
		t.Fatalf("TenantStats() error: %v", err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 || stats.Relationships != 0 || stats.Episodes != 0 {
		t.Errorf("cascade incomplete: %+v", stats)
	}
	// Canonical entities survive document deletion.
	if stats.Entities != 1 {
		t.Errorf("entities = %d, want 1 (kept)", stats.Entities)
	}
}
