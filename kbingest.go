// Package kbingest is a multi-tenant knowledge ingestion pipeline. It
// extracts text and entities from documents through a fallback chain of
// backends, resolves extracted entities against each tenant's canonical
// records, and persists the result across three independently fallible
// stores: a raw archive, a relationship graph, and a vector index.
package kbingest

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/mwestall/kbingest/archive"
	"github.com/mwestall/kbingest/chunker"
	"github.com/mwestall/kbingest/extract"
	"github.com/mwestall/kbingest/llm"
	"github.com/mwestall/kbingest/resolve"
	"github.com/mwestall/kbingest/store"
)

// Pipeline is the main entry point. One Pipeline serves all tenants;
// entity resolution state is kept per tenant.
type Pipeline struct {
	cfg      Config
	store    *store.Store
	archive  archive.Storage
	coord    *extract.Coordinator
	chunker  *chunker.Chunker
	embedder llm.Provider
	pool     *ants.Pool
	logger   *slog.Logger

	mu        sync.Mutex
	resolvers map[string]*resolve.Resolver
}

// Option overrides a pipeline collaborator, mainly for tests and
// embedding into larger services.
type Option func(*options)

type options struct {
	chat     llm.Provider
	embedder llm.Provider
	archive  archive.Storage
	backends []extract.Backend
	logger   *slog.Logger
}

// WithChatProvider replaces the completion provider used for entity
// extraction and boundary-aware chunking.
func WithChatProvider(p llm.Provider) Option {
	return func(o *options) { o.chat = p }
}

// WithEmbeddingProvider replaces the embedding provider.
func WithEmbeddingProvider(p llm.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// WithArchive replaces the raw-store backend.
func WithArchive(s archive.Storage) Option {
	return func(o *options) { o.archive = s }
}

// WithBackends replaces the extraction chain. The first backend is the
// primary; the rest are fallbacks in order.
func WithBackends(backends ...extract.Backend) Option {
	return func(o *options) { o.backends = backends }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a pipeline with the given configuration.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.MinChunkSize == 0 {
		cfg.MinChunkSize = 200
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = 1800
	}
	if cfg.EmbedContextChars == 0 {
		cfg.EmbedContextChars = 6000
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 8
	}
	if cfg.MinChunkSize >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("%w: min_chunk_size must be below max_chunk_size", ErrInvalidConfig)
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	arch := o.archive
	if arch == nil {
		arch, err = archive.New(cfg.Archive)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening archive: %w", err)
		}
	}

	chat := o.chat
	if chat == nil {
		chat, err = llm.NewOpenAI(cfg.Chat)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating chat provider: %w", err)
		}
	}

	embedder := o.embedder
	if embedder == nil {
		embedder, err = llm.NewOpenAI(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	backends := o.backends
	if len(backends) == 0 {
		backends = []extract.Backend{
			extract.NewLLMBackend(chat),
			extract.NewConverterBackend(),
		}
		if cfg.Remote != nil {
			backends = append(backends, extract.NewRemoteBackend(*cfg.Remote))
		}
	}

	pool, err := ants.NewPool(cfg.EmbedConcurrency)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embed pool: %w", err)
	}

	validator := &extract.Validator{MinTextLength: cfg.MinTextLength}

	return &Pipeline{
		cfg:       cfg,
		store:     s,
		archive:   arch,
		coord:     extract.NewCoordinator(validator, backends...),
		chunker:   chunker.New(chunker.Config{MinSize: cfg.MinChunkSize, MaxSize: cfg.MaxChunkSize}, chat),
		embedder:  embedder,
		pool:      pool,
		logger:    o.logger,
		resolvers: make(map[string]*resolve.Resolver),
	}, nil
}

// resolverFor returns the tenant's resolver, creating it on first use.
// Resolvers are shared across concurrent ingestions for the same
// tenant; the store's uniqueness constraint backstops stale-cache
// races.
func (p *Pipeline) resolverFor(tenantID string) *resolve.Resolver {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resolvers[tenantID]
	if !ok {
		r = resolve.New(p.store, tenantID, p.logger)
		p.resolvers[tenantID] = r
	}
	return r
}

// invalidateResolver drops the tenant's entity cache after a write.
func (p *Pipeline) invalidateResolver(tenantID string) {
	p.mu.Lock()
	r, ok := p.resolvers[tenantID]
	p.mu.Unlock()
	if ok {
		r.InvalidateCache()
	}
}

// Store returns the underlying store for diagnostic access.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Close releases the worker pool and closes the store.
func (p *Pipeline) Close() error {
	p.pool.Release()
	return p.store.Close()
}
