package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Ingested document registry, keyed by tenant + content-hash ID
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    filename TEXT,
    format TEXT,
    document_type TEXT,
    backend TEXT,
    status TEXT DEFAULT 'pending',
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(tenant_id, document_id)
);

-- Canonical entity records, one row per real-world entity per tenant.
-- The UNIQUE constraint is the enforcement point against concurrent
-- ingestions racing to create the same entity through a stale resolver
-- cache.
CREATE TABLE IF NOT EXISTS canonical_entities (
    id INTEGER PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    name TEXT NOT NULL,
    aliases JSON,
    shorthand TEXT,
    address TEXT,
    street TEXT,
    value TEXT,
    needs_review INTEGER NOT NULL DEFAULT 0,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(tenant_id, entity_type, name)
);

-- Provenance: which document mentioned which entity, and what the
-- matcher decided about it.
CREATE TABLE IF NOT EXISTS document_entities (
    id INTEGER PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    decision TEXT NOT NULL,
    matched_via TEXT,
    confidence REAL,
    source_text TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Relationship graph edges between canonical entities
CREATE TABLE IF NOT EXISTS entity_relationships (
    id INTEGER PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    source_entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    target_entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    relation_type TEXT NOT NULL,
    properties JSON,
    document_id TEXT
);

-- Graph episodes: one per ingested document, summarizing its entities
CREATE TABLE IF NOT EXISTS episodes (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    summary TEXT NOT NULL,
    entity_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Vector-path chunks, ordered within a document
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    metadata JSON
);

-- Vector embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_entities_tenant_type ON canonical_entities(tenant_id, entity_type);
CREATE INDEX IF NOT EXISTS idx_doc_entities_document ON document_entities(tenant_id, document_id);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON entity_relationships(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON entity_relationships(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_episodes_document ON episodes(tenant_id, document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(tenant_id, document_id);
`, embeddingDim)
}
