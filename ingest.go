package kbingest

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mwestall/kbingest/archive"
	"github.com/mwestall/kbingest/extract"
	"github.com/mwestall/kbingest/resolve"
	"github.com/mwestall/kbingest/store"
)

// IngestOption tunes a single ingestion.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	documentType    string
	entityTypes     []string
	metadata        map[string]string
	extractEntities bool
	storeRaw        bool
	storeGraph      bool
	storeVector     bool
}

func defaultIngestOptions() ingestOptions {
	return ingestOptions{
		extractEntities: true,
		storeRaw:        true,
		storeGraph:      true,
		storeVector:     true,
	}
}

// WithDocumentType tags the document with a caller-supplied type, e.g.
// "lease" or "invoice".
func WithDocumentType(t string) IngestOption {
	return func(o *ingestOptions) { o.documentType = t }
}

// WithEntityTypes limits entity extraction to the given types.
func WithEntityTypes(types ...string) IngestOption {
	return func(o *ingestOptions) { o.entityTypes = types }
}

// WithMetadata attaches caller metadata to the document record.
func WithMetadata(md map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = md }
}

// WithoutEntities skips entity extraction and the graph store.
func WithoutEntities() IngestOption {
	return func(o *ingestOptions) {
		o.extractEntities = false
		o.storeGraph = false
	}
}

// WithoutRaw skips the raw archive.
func WithoutRaw() IngestOption {
	return func(o *ingestOptions) { o.storeRaw = false }
}

// WithoutGraph skips entity linking and relationship storage.
func WithoutGraph() IngestOption {
	return func(o *ingestOptions) { o.storeGraph = false }
}

// WithoutVector skips chunking and embedding.
func WithoutVector() IngestOption {
	return func(o *ingestOptions) { o.storeVector = false }
}

// Ingest processes one file for a tenant: extraction through the
// backend chain, then writes to each requested store. Store failures
// never abort the ingestion; they are reported per store in the result
// and degrade the overall status to partial. Only pre-extraction
// problems (missing tenant, unreadable file, unsupported format)
// surface as plain errors.
func (p *Pipeline) Ingest(ctx context.Context, tenantID, path string, opts ...IngestOption) (*IngestionResult, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if path == "" {
		return nil, ErrEmptyInput
	}

	documentID, err := fileHash(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrSourceUnavailable, err)
	}

	filename := filepath.Base(path)
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	return p.ingest(ctx, tenantID, documentID, filename, format, opts, func(eo extract.Options) (*extract.Result, error) {
		return p.coord.Extract(ctx, path, eo)
	})
}

// IngestText processes raw text that never existed as a file. The
// document ID is the hash of the text itself, so re-submitting the same
// text is idempotent.
func (p *Pipeline) IngestText(ctx context.Context, tenantID, text string, opts ...IngestOption) (*IngestionResult, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	documentID := fmt.Sprintf("%x", sha256.Sum256([]byte(text)))

	return p.ingest(ctx, tenantID, documentID, "", "txt", opts, func(eo extract.Options) (*extract.Result, error) {
		return p.coord.ExtractText(ctx, text, eo)
	})
}

func (p *Pipeline) ingest(ctx context.Context, tenantID, documentID, filename, format string, opts []IngestOption, run func(extract.Options) (*extract.Result, error)) (*IngestionResult, error) {
	start := time.Now()

	o := defaultIngestOptions()
	for _, opt := range opts {
		opt(&o)
	}

	result := &IngestionResult{
		TenantID:   tenantID,
		DocumentID: documentID,
		Filename:   filename,
		Stores: map[string]StoreResult{
			StoreRaw:    {Requested: o.storeRaw},
			StoreGraph:  {Requested: o.storeGraph},
			StoreVector: {Requested: o.storeVector},
		},
	}

	log := p.logger.With("tenant", tenantID, "document", documentID, "filename", filename)

	extracted, err := run(extract.Options{
		ExtractEntities: o.extractEntities && o.storeGraph,
		EntityTypes:     o.entityTypes,
	})
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) || errors.Is(err, extract.ErrSourceUnavailable) {
			return nil, err
		}
		// Every backend was tried and failed. Nothing to persist.
		log.Error("extraction failed", "error", err)
		result.Status = StatusFailed
		result.Errors = append(result.Errors, err.Error())
		p.skipStores(result, "extraction failed")
		result.finalize(start)
		return result, nil
	}

	result.Backend = extracted.Backend
	result.EntitiesFound = len(extracted.Entities)
	result.RelationshipsFound = len(extracted.Relationships)
	result.Warnings = append(result.Warnings, extracted.ValidationWarnings...)
	log.Info("extraction complete",
		"backend", extracted.Backend,
		"confidence", extracted.Confidence,
		"entities", len(extracted.Entities))

	if o.storeRaw {
		if err := ctx.Err(); err != nil {
			p.cancelStores(result, StoreRaw)
		} else {
			p.writeRaw(ctx, tenantID, documentID, o, extracted, result)
		}
	}

	// Cancellation before the registry upsert leaves no store touched:
	// no document row means nothing for graph or vector rows to anchor.
	if err := ctx.Err(); err != nil {
		p.cancelStores(result, StoreGraph, StoreVector)
		result.finalize(start)
		return result, nil
	}

	// The registry row anchors graph and vector data; without it those
	// stores would hold orphaned rows.
	if err := p.registerDocument(ctx, tenantID, documentID, filename, format, o, extracted); err != nil {
		log.Error("document registry write failed", "error", err)
		detail := fmt.Sprintf("registry write failed: %v", err)
		result.Stores[StoreGraph] = StoreResult{Requested: o.storeGraph, Detail: detail}
		result.Stores[StoreVector] = StoreResult{Requested: o.storeVector, Detail: detail}
		result.finalize(start)
		return result, nil
	}

	if o.storeGraph {
		if err := ctx.Err(); err != nil {
			p.cancelStores(result, StoreGraph, StoreVector)
		} else if stored, err := p.writeGraph(ctx, tenantID, documentID, filename, extracted, result); err != nil {
			log.Error("graph store write failed", "error", err)
			result.Stores[StoreGraph] = StoreResult{Requested: true, Detail: err.Error()}
		} else {
			result.Stores[StoreGraph] = StoreResult{Requested: true, Success: true,
				Detail: fmt.Sprintf("%d linked, %d created, %d flagged, %d relationships stored",
					result.EntitiesLinked, result.EntitiesCreated, result.EntitiesFlagged, stored)}
		}
	}

	if o.storeVector && result.Stores[StoreVector].Detail == "" {
		if err := ctx.Err(); err != nil {
			p.cancelStores(result, StoreVector)
		} else if err := p.writeVector(ctx, tenantID, documentID, extracted, result); err != nil {
			log.Error("vector store write failed", "error", err)
			result.Stores[StoreVector] = StoreResult{Requested: true, Detail: err.Error()}
		} else {
			result.Stores[StoreVector] = StoreResult{Requested: true, Success: true,
				Detail: fmt.Sprintf("%d chunks embedded", result.ChunksEmbedded)}
		}
	}

	result.finalize(start)
	if err := p.store.UpdateDocumentStatus(ctx, tenantID, documentID, result.Status); err != nil {
		log.Warn("status update failed", "error", err)
	}
	log.Info("ingestion complete", "status", result.Status, "duration_ms", result.DurationMS)
	return result, nil
}

// skipStores marks every requested store as not attempted.
func (p *Pipeline) skipStores(result *IngestionResult, detail string) {
	for name, sr := range result.Stores {
		if sr.Requested {
			result.Stores[name] = StoreResult{Requested: true, Detail: detail}
		}
	}
}

// cancelStores marks the named stores as skipped due to cancellation.
func (p *Pipeline) cancelStores(result *IngestionResult, names ...string) {
	for _, name := range names {
		if sr := result.Stores[name]; sr.Requested && !sr.Success && sr.Detail == "" {
			result.Stores[name] = StoreResult{Requested: true, Detail: "cancelled before write"}
		}
	}
}

// writeRaw archives the original text, markdown rendering, and
// extraction metadata. Re-ingesting an already-archived document is a
// no-op: content-hash IDs mean the stored bytes cannot have changed.
func (p *Pipeline) writeRaw(ctx context.Context, tenantID, documentID string, o ingestOptions, extracted *extract.Result, result *IngestionResult) {
	exists, err := p.archive.Exists(ctx, tenantID, documentID)
	if err != nil {
		result.Stores[StoreRaw] = StoreResult{Requested: true, Detail: fmt.Sprintf("existence check failed: %v", err)}
		return
	}
	if exists {
		result.Stores[StoreRaw] = StoreResult{Requested: true, Success: true, Detail: "already archived"}
		return
	}

	if err := p.archive.Put(ctx, tenantID, documentID, archive.RawName, strings.NewReader(extracted.RawText)); err != nil {
		result.Stores[StoreRaw] = StoreResult{Requested: true, Detail: err.Error()}
		return
	}
	if extracted.Markdown != "" {
		if err := p.archive.Put(ctx, tenantID, documentID, archive.MarkdownName, strings.NewReader(extracted.Markdown)); err != nil {
			result.Stores[StoreRaw] = StoreResult{Requested: true, Detail: fmt.Sprintf("markdown: %v", err)}
			return
		}
	}

	meta := map[string]any{
		"filename":   result.Filename,
		"backend":    extracted.Backend,
		"confidence": extracted.Confidence,
		"metadata":   extracted.Metadata,
	}
	if o.documentType != "" {
		meta["document_type"] = o.documentType
	}
	blob, _ := json.Marshal(meta)
	if err := p.archive.Put(ctx, tenantID, documentID, archive.MetadataName, strings.NewReader(string(blob))); err != nil {
		result.Stores[StoreRaw] = StoreResult{Requested: true, Detail: fmt.Sprintf("metadata: %v", err)}
		return
	}

	result.Stores[StoreRaw] = StoreResult{Requested: true, Success: true, Detail: "archived"}
}

// registerDocument upserts the document registry row. Metadata merges
// filename-derived fields with caller-supplied and extractor-supplied
// values.
func (p *Pipeline) registerDocument(ctx context.Context, tenantID, documentID, filename, format string, o ingestOptions, extracted *extract.Result) error {
	md := map[string]string{}
	if parts, ok := resolve.ParseFilename(filename); ok {
		md["company"] = parts.Company
		md["property"] = parts.Property
		if parts.Description != "" {
			md["description"] = parts.Description
		}
		if parts.Date != "" {
			md["date"] = parts.Date
		}
	}
	for k, v := range extracted.Metadata {
		md[k] = v
	}
	for k, v := range o.metadata {
		md[k] = v
	}
	blob, _ := json.Marshal(md)

	_, err := p.store.UpsertDocument(ctx, store.Document{
		TenantID:     tenantID,
		DocumentID:   documentID,
		Filename:     filename,
		Format:       format,
		DocumentType: o.documentType,
		Backend:      extracted.Backend,
		Status:       "ingesting",
		Metadata:     string(blob),
	})
	return err
}

// writeGraph resolves each extracted entity against the tenant's
// canonical records and persists the link decisions, relationships, and
// an episode summarizing the ingestion. It returns the number of
// relationships actually stored; extraction counts stay on the result.
func (p *Pipeline) writeGraph(ctx context.Context, tenantID, documentID, filename string, extracted *extract.Result, result *IngestionResult) (int, error) {
	resolver := p.resolverFor(tenantID)
	entityIDs := make(map[string]int64, len(extracted.Entities))
	createdAny := false

	for _, ent := range extracted.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}

		typeFilter := ent.Type
		if typeFilter == extract.TypeUnknown {
			typeFilter = ""
		}
		match, err := resolver.Resolve(ctx, name, typeFilter)
		if err != nil {
			return 0, fmt.Errorf("resolving %q: %w", name, err)
		}

		var (
			entityID int64
			decision = resolve.Decide(match)
		)
		switch decision {
		case resolve.DecisionLinkExisting:
			entityID, err = strconv.ParseInt(match.Entity.ID, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("entity id %q: %w", match.Entity.ID, err)
			}
			result.EntitiesLinked++

		case resolve.DecisionNeedsReview:
			// Ambiguous match: create a flagged record rather than
			// guessing, and let review merge or confirm it later.
			id, created, cerr := p.store.CreateEntity(ctx, store.Entity{
				TenantID:    tenantID,
				EntityType:  ent.Type,
				Name:        name,
				Value:       ent.Value,
				NeedsReview: true,
			})
			if cerr != nil {
				return 0, fmt.Errorf("creating flagged entity %q: %w", name, cerr)
			}
			entityID = id
			createdAny = createdAny || created
			result.EntitiesFlagged++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("entity %q ambiguously matched %q via %s (%.2f); flagged for review",
					name, match.Entity.Name, match.MatchedVia, match.Confidence))

		default: // create_new
			id, created, cerr := p.store.CreateEntity(ctx, store.Entity{
				TenantID:   tenantID,
				EntityType: ent.Type,
				Name:       name,
				Value:      ent.Value,
			})
			if cerr != nil {
				return 0, fmt.Errorf("creating entity %q: %w", name, cerr)
			}
			entityID = id
			if created {
				createdAny = true
				result.EntitiesCreated++
			} else {
				// Another ingestion created it between cache load and
				// now; the unique constraint converged us on its row.
				result.EntitiesLinked++
			}
		}

		link := store.DocumentEntity{
			TenantID:   tenantID,
			DocumentID: documentID,
			EntityID:   entityID,
			Decision:   string(decision),
			SourceText: ent.SourceText,
		}
		if match != nil {
			link.MatchedVia = match.MatchedVia
			link.Confidence = match.Confidence
		}
		if _, err := p.store.LinkDocumentEntity(ctx, link); err != nil {
			return 0, fmt.Errorf("linking entity %q: %w", name, err)
		}
		entityIDs[strings.ToLower(name)] = entityID
	}

	if createdAny {
		resolver.InvalidateCache()
	}

	stored := 0
	for _, rel := range extracted.Relationships {
		srcID, okSrc := entityIDs[strings.ToLower(strings.TrimSpace(rel.Source))]
		tgtID, okTgt := entityIDs[strings.ToLower(strings.TrimSpace(rel.Target))]
		if !okSrc || !okTgt {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("relationship %q -> %q (%s) references an unknown entity; skipped",
					rel.Source, rel.Target, rel.RelationType))
			continue
		}
		props := ""
		if len(rel.Properties) > 0 {
			blob, _ := json.Marshal(rel.Properties)
			props = string(blob)
		}
		if _, err := p.store.InsertRelationship(ctx, store.Relationship{
			TenantID:       tenantID,
			SourceEntityID: srcID,
			TargetEntityID: tgtID,
			RelationType:   rel.RelationType,
			Properties:     props,
			DocumentID:     documentID,
		}); err != nil {
			return 0, fmt.Errorf("storing relationship %q -> %q: %w", rel.Source, rel.Target, err)
		}
		stored++
	}

	label := filename
	if label == "" {
		label = documentID[:12]
	}
	summary := fmt.Sprintf("ingested %s: %d entities (%d linked, %d created, %d flagged), %d relationships",
		label, len(entityIDs), result.EntitiesLinked, result.EntitiesCreated, result.EntitiesFlagged, stored)
	if _, err := p.store.AddEpisode(ctx, store.Episode{
		TenantID:    tenantID,
		DocumentID:  documentID,
		Summary:     summary,
		EntityCount: len(entityIDs),
	}); err != nil {
		return 0, fmt.Errorf("recording episode: %w", err)
	}
	return stored, nil
}

// writeVector chunks the document text and embeds each chunk
// concurrently. Documents short enough to embed whole skip the chunker.
func (p *Pipeline) writeVector(ctx context.Context, tenantID, documentID string, extracted *extract.Result, result *IngestionResult) error {
	text := extracted.RawText
	if strings.TrimSpace(text) == "" {
		text = extracted.Markdown
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no text to embed")
	}

	var chunks []string
	if len(text) <= p.cfg.EmbedContextChars {
		chunks = []string{text}
	} else {
		var warnings []string
		chunks, warnings = p.chunker.Chunk(ctx, text)
		result.Warnings = append(result.Warnings, warnings...)
	}

	chunkIDs, err := p.store.ReplaceChunks(ctx, tenantID, documentID, chunks)
	if err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	embeddings := make([][]float32, len(chunks))
	embedErrs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			vecs, err := p.embedder.Embed(ctx, []string{chunks[i]})
			if err != nil {
				embedErrs[i] = err
				return
			}
			if len(vecs) != 1 {
				embedErrs[i] = fmt.Errorf("expected 1 embedding, got %d", len(vecs))
				return
			}
			embeddings[i] = vecs[0]
		}); err != nil {
			wg.Done()
			embedErrs[i] = err
		}
	}
	wg.Wait()

	var firstErr error
	for i := range chunks {
		if embedErrs[i] != nil {
			if firstErr == nil {
				firstErr = embedErrs[i]
			}
			continue
		}
		if err := p.store.InsertEmbedding(ctx, chunkIDs[i], embeddings[i]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.ChunksEmbedded++
	}

	if result.ChunksEmbedded < len(chunks) {
		return fmt.Errorf("embedded %d/%d chunks: %v", result.ChunksEmbedded, len(chunks), firstErr)
	}
	return nil
}

// fileHash returns the hex SHA-256 of a file's contents. It doubles as
// the document ID, so identical bytes ingest to the same document no
// matter the path.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
