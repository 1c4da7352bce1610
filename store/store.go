// Package store persists the tenant-scoped knowledge base: the
// document registry, canonical entities and their relationship graph,
// ingestion episodes, and the chunk/embedding vector index.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mwestall/kbingest/resolve"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table. DocumentID is the
// content-hash identifier computed by the pipeline, stable across
// re-ingestions of identical bytes.
type Document struct {
	ID           int64  `json:"id"`
	TenantID     string `json:"tenant_id"`
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename"`
	Format       string `json:"format"`
	DocumentType string `json:"document_type,omitempty"`
	Backend      string `json:"backend,omitempty"`
	Status       string `json:"status"`
	Metadata     string `json:"metadata,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Entity represents a row in the canonical_entities table.
type Entity struct {
	ID          int64    `json:"id"`
	TenantID    string   `json:"tenant_id"`
	EntityType  string   `json:"entity_type"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Shorthand   string   `json:"shorthand,omitempty"`
	Address     string   `json:"address,omitempty"`
	Street      string   `json:"street,omitempty"`
	Value       string   `json:"value,omitempty"`
	NeedsReview bool     `json:"needs_review"`
	Metadata    string   `json:"metadata,omitempty"`
}

// DocumentEntity records the matcher's decision for one entity mention
// in one document.
type DocumentEntity struct {
	ID         int64   `json:"id"`
	TenantID   string  `json:"tenant_id"`
	DocumentID string  `json:"document_id"`
	EntityID   int64   `json:"entity_id"`
	Decision   string  `json:"decision"`
	MatchedVia string  `json:"matched_via,omitempty"`
	Confidence float64 `json:"confidence"`
	SourceText string  `json:"source_text,omitempty"`
}

// Relationship represents an edge in the entity graph.
type Relationship struct {
	ID             int64  `json:"id"`
	TenantID       string `json:"tenant_id"`
	SourceEntityID int64  `json:"source_entity_id"`
	TargetEntityID int64  `json:"target_entity_id"`
	RelationType   string `json:"relation_type"`
	Properties     string `json:"properties,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
}

// Episode summarizes one document's contribution to the graph.
type Episode struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	DocumentID  string `json:"document_id"`
	Summary     string `json:"summary"`
	EntityCount int    `json:"entity_count"`
	CreatedAt   string `json:"created_at"`
}

// Chunk represents a row in the chunks table.
type Chunk struct {
	ID          int64  `json:"id"`
	TenantID    string `json:"tenant_id"`
	DocumentID  string `json:"document_id"`
	Position    int    `json:"position"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	Metadata    string `json:"metadata,omitempty"`
}

// SearchResult holds a chunk with its similarity score and document
// info.
type SearchResult struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Position   int     `json:"position"`
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
}

// Store wraps the SQLite database for all kbingest persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record. Returns the
// internal row ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	// RETURNING sidesteps LastInsertId, which reports the connection's
	// last genuine insert even when the upsert took the UPDATE branch.
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (tenant_id, document_id, filename, format, document_type, backend, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, document_id) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			document_type = excluded.document_type,
			backend = excluded.backend,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, doc.TenantID, doc.DocumentID, doc.Filename, doc.Format, doc.DocumentType,
		doc.Backend, doc.Status, doc.Metadata).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocument retrieves a document by its content-hash ID within a
// tenant. Returns sql.ErrNoRows when the document is unknown.
func (s *Store) GetDocument(ctx context.Context, tenantID, documentID string) (*Document, error) {
	doc := &Document{}
	var docType, backend, metadata sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, document_id, filename, format, document_type, backend, status, metadata, created_at, updated_at
		FROM documents WHERE tenant_id = ? AND document_id = ?
	`, tenantID, documentID).Scan(&doc.ID, &doc.TenantID, &doc.DocumentID, &doc.Filename,
		&doc.Format, &docType, &backend, &doc.Status,
		&metadata, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.DocumentType = docType.String
	doc.Backend = backend.String
	doc.Metadata = metadata.String
	return doc, nil
}

// ListDocuments returns a tenant's documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context, tenantID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, filename, format, document_type, backend, status, metadata, created_at, updated_at
		FROM documents WHERE tenant_id = ? ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var docType, backend, metadata sql.NullString
		if err := rows.Scan(&d.ID, &d.TenantID, &d.DocumentID, &d.Filename,
			&d.Format, &docType, &backend, &d.Status,
			&metadata, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.DocumentType = docType.String
		d.Backend = backend.String
		d.Metadata = metadata.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, tenantID, documentID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND document_id = ?`,
		status, tenantID, documentID)
	return err
}

// DeleteDocument removes a document and cascades to its chunks,
// embeddings, provenance rows, relationships, and episodes. Canonical
// entities are kept: they may be referenced by other documents.
func (s *Store) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM chunks WHERE tenant_id = ? AND document_id = ?
			)`, tenantID, documentID); err != nil {
			return err
		}

		for _, stmt := range []string{
			"DELETE FROM chunks WHERE tenant_id = ? AND document_id = ?",
			"DELETE FROM document_entities WHERE tenant_id = ? AND document_id = ?",
			"DELETE FROM entity_relationships WHERE tenant_id = ? AND document_id = ?",
			"DELETE FROM episodes WHERE tenant_id = ? AND document_id = ?",
			"DELETE FROM documents WHERE tenant_id = ? AND document_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, tenantID, documentID); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Entity operations ---

// EntitiesByTenant returns a tenant's canonical entities in resolver
// form. It implements resolve.EntitySource.
func (s *Store) EntitiesByTenant(ctx context.Context, tenantID string) ([]resolve.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, name, aliases, shorthand, address, street
		FROM canonical_entities WHERE tenant_id = ?
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []resolve.Entity
	for rows.Next() {
		var id int64
		var aliases, shorthand, address, street sql.NullString
		e := resolve.Entity{TenantID: tenantID}
		if err := rows.Scan(&id, &e.Type, &e.Name, &aliases, &shorthand, &address, &street); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprintf("%d", id)
		e.Shorthand = shorthand.String
		e.Address = address.String
		e.Street = street.String
		if aliases.Valid && aliases.String != "" {
			if err := json.Unmarshal([]byte(aliases.String), &e.Aliases); err != nil {
				return nil, fmt.Errorf("entity %d: decoding aliases: %w", id, err)
			}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// CreateEntity inserts a canonical entity. The UNIQUE(tenant_id,
// entity_type, name) constraint makes concurrent creation of the same
// entity converge on one row: the loser of the race gets the winner's
// ID and created=false.
func (s *Store) CreateEntity(ctx context.Context, e Entity) (int64, bool, error) {
	aliasJSON := "[]"
	if len(e.Aliases) > 0 {
		b, err := json.Marshal(e.Aliases)
		if err != nil {
			return 0, false, fmt.Errorf("encoding aliases: %w", err)
		}
		aliasJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_entities (tenant_id, entity_type, name, aliases, shorthand, address, street, value, needs_review, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, entity_type, name) DO NOTHING
	`, e.TenantID, e.EntityType, e.Name, aliasJSON, e.Shorthand, e.Address, e.Street,
		e.Value, boolToInt(e.NeedsReview), e.Metadata)
	if err != nil {
		return 0, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM canonical_entities WHERE tenant_id = ? AND entity_type = ? AND name = ?",
		e.TenantID, e.EntityType, e.Name).Scan(&id)
	return id, false, err
}

// GetEntity retrieves one canonical entity by row ID.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	e := &Entity{}
	var aliases, shorthand, address, street, value, metadata sql.NullString
	var review int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, entity_type, name, aliases, shorthand, address, street, value, needs_review, metadata
		FROM canonical_entities WHERE id = ?
	`, id).Scan(&e.ID, &e.TenantID, &e.EntityType, &e.Name,
		&aliases, &shorthand, &address, &street, &value, &review, &metadata)
	if err != nil {
		return nil, err
	}
	e.Shorthand = shorthand.String
	e.Address = address.String
	e.Street = street.String
	e.Value = value.String
	e.NeedsReview = review != 0
	e.Metadata = metadata.String
	if aliases.Valid && aliases.String != "" {
		if err := json.Unmarshal([]byte(aliases.String), &e.Aliases); err != nil {
			return nil, fmt.Errorf("entity %d: decoding aliases: %w", id, err)
		}
	}
	return e, nil
}

// ResolveEntityReview clears the needs_review flag after human
// confirmation.
func (s *Store) ResolveEntityReview(ctx context.Context, tenantID string, entityID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE canonical_entities SET needs_review = 0 WHERE tenant_id = ? AND id = ?",
		tenantID, entityID)
	return err
}

// EntitiesNeedingReview returns a tenant's flagged entities.
func (s *Store) EntitiesNeedingReview(ctx context.Context, tenantID string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM canonical_entities
		WHERE tenant_id = ? AND needs_review = 1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var entities []Entity
	for _, id := range ids {
		e, err := s.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, nil
}

// LinkDocumentEntity records the matcher's decision for one entity
// mention in one document.
func (s *Store) LinkDocumentEntity(ctx context.Context, de DocumentEntity) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO document_entities (tenant_id, document_id, entity_id, decision, matched_via, confidence, source_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, de.TenantID, de.DocumentID, de.EntityID, de.Decision, de.MatchedVia, de.Confidence, de.SourceText)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DocumentEntities returns the provenance rows for a document.
func (s *Store) DocumentEntities(ctx context.Context, tenantID, documentID string) ([]DocumentEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, entity_id, decision, matched_via, confidence, source_text
		FROM document_entities WHERE tenant_id = ? AND document_id = ? ORDER BY id
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []DocumentEntity
	for rows.Next() {
		var de DocumentEntity
		var via, src sql.NullString
		if err := rows.Scan(&de.ID, &de.TenantID, &de.DocumentID, &de.EntityID,
			&de.Decision, &via, &de.Confidence, &src); err != nil {
			return nil, err
		}
		de.MatchedVia = via.String
		de.SourceText = src.String
		links = append(links, de)
	}
	return links, rows.Err()
}

// --- Relationship and episode operations ---

// InsertRelationship creates an edge between two canonical entities.
func (s *Store) InsertRelationship(ctx context.Context, r Relationship) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_relationships (tenant_id, source_entity_id, target_entity_id, relation_type, properties, document_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.TenantID, r.SourceEntityID, r.TargetEntityID, r.RelationType, r.Properties, r.DocumentID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RelationshipsByDocument returns the edges recorded for a document.
func (s *Store) RelationshipsByDocument(ctx context.Context, tenantID, documentID string) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, source_entity_id, target_entity_id, relation_type, properties, document_id
		FROM entity_relationships WHERE tenant_id = ? AND document_id = ? ORDER BY id
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var r Relationship
		var props, docID sql.NullString
		if err := rows.Scan(&r.ID, &r.TenantID, &r.SourceEntityID, &r.TargetEntityID,
			&r.RelationType, &props, &docID); err != nil {
			return nil, err
		}
		r.Properties = props.String
		r.DocumentID = docID.String
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// AddEpisode records a document's graph episode and returns its ID.
func (s *Store) AddEpisode(ctx context.Context, ep Episode) (string, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, tenant_id, document_id, summary, entity_count)
		VALUES (?, ?, ?, ?, ?)
	`, ep.ID, ep.TenantID, ep.DocumentID, ep.Summary, ep.EntityCount)
	if err != nil {
		return "", err
	}
	return ep.ID, nil
}

// EpisodesByDocument returns the episodes recorded for a document.
func (s *Store) EpisodesByDocument(ctx context.Context, tenantID, documentID string) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, summary, entity_count, created_at
		FROM episodes WHERE tenant_id = ? AND document_id = ? ORDER BY created_at
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eps []Episode
	for rows.Next() {
		var ep Episode
		if err := rows.Scan(&ep.ID, &ep.TenantID, &ep.DocumentID,
			&ep.Summary, &ep.EntityCount, &ep.CreatedAt); err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}

// --- Chunk and embedding operations ---

// ReplaceChunks deletes a document's existing chunks and embeddings and
// inserts the new ordered set, returning the new chunk row IDs.
// Re-embedding a document is a replace, never an append.
func (s *Store) ReplaceChunks(ctx context.Context, tenantID, documentID string, contents []string) ([]int64, error) {
	ids := make([]int64, len(contents))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM chunks WHERE tenant_id = ? AND document_id = ?
			)`, tenantID, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE tenant_id = ? AND document_id = ?",
			tenantID, documentID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (tenant_id, document_id, position, content, content_hash)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, content := range contents {
			hash := sha256.Sum256([]byte(content))
			res, err := stmt.ExecContext(ctx, tenantID, documentID, i, content, hex.EncodeToString(hash[:]))
			if err != nil {
				return err
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// ChunksByDocument returns a document's chunks in position order.
func (s *Store) ChunksByDocument(ctx context.Context, tenantID, documentID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, position, content, content_hash, metadata
		FROM chunks WHERE tenant_id = ? AND document_id = ? ORDER BY position
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var metadata sql.NullString
		if err := rows.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.Position,
			&c.Content, &c.ContentHash, &metadata); err != nil {
			return nil, err
		}
		c.Metadata = metadata.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// InsertEmbedding stores a vector embedding for a chunk.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		chunkID, serializeFloat32(embedding))
	return err
}

// SearchSimilar performs a KNN search over a tenant's chunks.
func (s *Store) SearchSimilar(ctx context.Context, tenantID string, queryEmbedding []float32, k int) ([]SearchResult, error) {
	// vec0 KNN cannot be combined with an outer-table filter, so
	// over-fetch and filter by tenant afterwards.
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance,
			c.tenant_id, c.document_id, c.position, c.content,
			COALESCE(d.filename, '')
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		LEFT JOIN documents d ON d.tenant_id = c.tenant_id AND d.document_id = c.document_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var distance float64
		var rowTenant string
		if err := rows.Scan(&r.ChunkID, &distance,
			&rowTenant, &r.DocumentID, &r.Position, &r.Content, &r.Filename); err != nil {
			return nil, err
		}
		if rowTenant != tenantID {
			continue
		}
		// Convert distance to similarity score (1 - distance for cosine)
		r.Score = 1.0 - distance
		results = append(results, r)
		if len(results) == k {
			break
		}
	}
	return results, rows.Err()
}

// --- Diagnostics ---

// Stats holds per-tenant row counts.
type Stats struct {
	Documents     int `json:"documents"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Episodes      int `json:"episodes"`
	Chunks        int `json:"chunks"`
}

// TenantStats returns row counts for one tenant.
func (s *Store) TenantStats(ctx context.Context, tenantID string) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents WHERE tenant_id = ?", &stats.Documents},
		{"SELECT COUNT(*) FROM canonical_entities WHERE tenant_id = ?", &stats.Entities},
		{"SELECT COUNT(*) FROM entity_relationships WHERE tenant_id = ?", &stats.Relationships},
		{"SELECT COUNT(*) FROM episodes WHERE tenant_id = ?", &stats.Episodes},
		{"SELECT COUNT(*) FROM chunks WHERE tenant_id = ?", &stats.Chunks},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, tenantID).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
