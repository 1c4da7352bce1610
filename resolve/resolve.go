// Package resolve maps free-text entity references (aliases, shorthand
// codes, filename fragments, partial addresses) to canonical entities
// already known to a tenant, and decides whether an extracted entity
// should link to an existing record, create a new one, or be flagged
// for human review.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Entity is a canonical record owned by a tenant's store.
type Entity struct {
	ID        string
	TenantID  string
	Type      string
	Name      string
	Aliases   []string
	Shorthand string
	Address   string
	Street    string
}

// Match is a resolver hit: the canonical entity, the strategy that
// produced it, and the strategy's confidence.
type Match struct {
	Entity     Entity
	MatchedVia string
	Confidence float64
}

// Strategy labels recorded in Match.MatchedVia.
const (
	ViaAlias          = "alias"
	ViaShorthand      = "shorthand"
	ViaName           = "name"
	ViaPartialName    = "partial_name"
	ViaPartialAddress = "address"
	ViaStreet         = "street"
)

// EntitySource loads a tenant's canonical entities. The store layer
// implements this.
type EntitySource interface {
	EntitiesByTenant(ctx context.Context, tenantID string) ([]Entity, error)
}

// minStreetMatchLen guards the street strategy against trivial
// substring hits like "St" or "Ave".
const minStreetMatchLen = 4

// Resolver resolves references against one tenant's entities. The
// entity list is loaded once and cached; after any write that adds or
// edits aliases the caller must call InvalidateCache, because the
// resolver never auto-refreshes. That contract is correctness-critical:
// a stale cache makes concurrent ingestions create duplicate records.
type Resolver struct {
	source EntitySource
	tenant string
	logger *slog.Logger

	mu       sync.Mutex
	entities []Entity
	loaded   bool
}

// New returns a resolver scoped to tenantID, reading through source.
func New(source EntitySource, tenantID string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, tenant: tenantID, logger: logger}
}

// InvalidateCache drops the cached entity list; the next Resolve call
// reloads it from the source.
func (r *Resolver) InvalidateCache() {
	r.mu.Lock()
	r.entities = nil
	r.loaded = false
	r.mu.Unlock()
}

func (r *Resolver) load(ctx context.Context) ([]Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.entities, nil
	}
	entities, err := r.source.EntitiesByTenant(ctx, r.tenant)
	if err != nil {
		return nil, err
	}
	r.entities = entities
	r.loaded = true
	r.logger.Debug("resolver cache loaded", "tenant", r.tenant, "entities", len(entities))
	return entities, nil
}

// Resolve maps query to a canonical entity, or nil when nothing
// matches. entityType narrows candidates to one type; pass "" for all.
// Strategies run in strict priority order and the first hit wins, even
// when a later strategy would also match:
//
//	1. exact alias match            confidence 1.0
//	2. exact shorthand match        confidence 1.0
//	3. exact canonical-name match   confidence 1.0
//	4. substring vs name/address    confidence 0.9
//	5. substring vs street name     confidence 0.8
func (r *Resolver) Resolve(ctx context.Context, query, entityType string) (*Match, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	candidates := all
	if entityType != "" {
		candidates = candidates[:0:0]
		for _, e := range all {
			if strings.EqualFold(e.Type, entityType) {
				candidates = append(candidates, e)
			}
		}
	}

	strategies := []func(Entity) *Match{
		matchAlias(q),
		matchShorthand(q),
		matchName(q),
		matchPartial(q),
		matchStreet(q),
	}
	for _, strategy := range strategies {
		for _, e := range candidates {
			if m := strategy(e); m != nil {
				r.logger.Debug("entity resolved",
					"tenant", r.tenant, "query", query,
					"entity_id", m.Entity.ID, "via", m.MatchedVia, "confidence", m.Confidence)
				return m, nil
			}
		}
	}
	return nil, nil
}

func matchAlias(q string) func(Entity) *Match {
	return func(e Entity) *Match {
		for _, alias := range e.Aliases {
			if strings.ToLower(strings.TrimSpace(alias)) == q {
				return &Match{Entity: e, MatchedVia: ViaAlias, Confidence: 1.0}
			}
		}
		return nil
	}
}

func matchShorthand(q string) func(Entity) *Match {
	return func(e Entity) *Match {
		if e.Shorthand != "" && strings.ToLower(e.Shorthand) == q {
			return &Match{Entity: e, MatchedVia: ViaShorthand, Confidence: 1.0}
		}
		return nil
	}
}

func matchName(q string) func(Entity) *Match {
	return func(e Entity) *Match {
		if e.Name != "" && strings.ToLower(e.Name) == q {
			return &Match{Entity: e, MatchedVia: ViaName, Confidence: 1.0}
		}
		return nil
	}
}

// matchPartial accepts substring containment in either direction
// against the canonical name or the full address.
func matchPartial(q string) func(Entity) *Match {
	return func(e Entity) *Match {
		if name := strings.ToLower(e.Name); name != "" && containsEither(q, name) {
			return &Match{Entity: e, MatchedVia: ViaPartialName, Confidence: 0.9}
		}
		if addr := strings.ToLower(e.Address); addr != "" && containsEither(q, addr) {
			return &Match{Entity: e, MatchedVia: ViaPartialAddress, Confidence: 0.9}
		}
		return nil
	}
}

func matchStreet(q string) func(Entity) *Match {
	return func(e Entity) *Match {
		street := strings.ToLower(e.Street)
		if len(street) < minStreetMatchLen || len(q) < minStreetMatchLen {
			return nil
		}
		if containsEither(q, street) {
			return &Match{Entity: e, MatchedVia: ViaStreet, Confidence: 0.8}
		}
		return nil
	}
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
