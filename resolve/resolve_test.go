package resolve

import (
	"context"
	"errors"
	"testing"
)

// fakeSource serves a fixed entity list and counts loads.
type fakeSource struct {
	entities []Entity
	err      error
	loads    int
}

func (s *fakeSource) EntitiesByTenant(ctx context.Context, tenantID string) ([]Entity, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	var out []Entity
	for _, e := range s.entities {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func seedEntities() []Entity {
	return []Entity{
		{
			ID:        "org_1",
			TenantID:  "t1",
			Type:      "company",
			Name:      "Acme Corporation",
			Aliases:   []string{"Acme", "ACME Inc"},
			Shorthand: "ACM",
		},
		{
			ID:       "prop_1",
			TenantID: "t1",
			Type:     "property",
			Name:     "Riverside Plaza",
			Address:  "123 Main Street, Springfield",
			Street:   "Main Street",
		},
		{
			ID:       "org_2",
			TenantID: "t2",
			Type:     "company",
			Name:     "Acme Corporation",
		},
	}
}

func TestResolveStrategies(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		entityType string
		wantID     string
		wantVia    string
		wantConf   float64
	}{
		{"exact alias", "acme", "", "org_1", ViaAlias, 1.0},
		{"alias is case-insensitive", "ACME INC", "", "org_1", ViaAlias, 1.0},
		{"shorthand code", "acm", "", "org_1", ViaShorthand, 1.0},
		{"exact name", "Riverside Plaza", "", "prop_1", ViaName, 1.0},
		{"partial name", "Acme Corp", "", "org_1", ViaPartialName, 0.9},
		{"query contains full address", "sent to 123 Main Street, Springfield yesterday", "", "prop_1", ViaPartialAddress, 0.9},
		{"street only", "Main Street Lofts", "", "prop_1", ViaStreet, 0.8},
		{"type filter scopes candidates", "acme", "company", "org_1", ViaAlias, 1.0},
		{"no match", "Globex", "", "", "", 0},
		{"type filter excludes match", "Riverside Plaza", "company", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeSource{entities: seedEntities()}, "t1", nil)
			m, err := r.Resolve(context.Background(), tt.query, tt.entityType)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if tt.wantID == "" {
				if m != nil {
					t.Fatalf("Resolve(%q) = %+v, want no match", tt.query, m)
				}
				return
			}
			if m == nil {
				t.Fatalf("Resolve(%q) = nil, want entity %s", tt.query, tt.wantID)
			}
			if m.Entity.ID != tt.wantID || m.MatchedVia != tt.wantVia || m.Confidence != tt.wantConf {
				t.Errorf("Resolve(%q) = (%s, %s, %.1f), want (%s, %s, %.1f)",
					tt.query, m.Entity.ID, m.MatchedVia, m.Confidence,
					tt.wantID, tt.wantVia, tt.wantConf)
			}
		})
	}
}

// An entity reachable both by alias and by address substring must
// resolve through the alias, deterministically.
func TestResolveStrategyPriority(t *testing.T) {
	entities := []Entity{
		{
			ID:       "prop_9",
			TenantID: "t1",
			Type:     "property",
			Name:     "Harbor Tower",
			Aliases:  []string{"456 Dock Road"},
			Address:  "456 Dock Road, Portside",
		},
	}
	r := New(&fakeSource{entities: entities}, "t1", nil)

	for i := 0; i < 5; i++ {
		m, err := r.Resolve(context.Background(), "456 Dock Road", "")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if m == nil || m.MatchedVia != ViaAlias || m.Confidence != 1.0 {
			t.Fatalf("run %d: got %+v, want alias match at 1.0", i, m)
		}
	}
}

// Short street names must not produce trivial matches.
func TestResolveStreetLengthGuard(t *testing.T) {
	entities := []Entity{
		{ID: "prop_2", TenantID: "t1", Type: "property", Name: "Corner Shop", Street: "Elm"},
	}
	r := New(&fakeSource{entities: entities}, "t1", nil)

	if m, _ := r.Resolve(context.Background(), "Elm Grove", ""); m != nil {
		t.Errorf("3-char street matched: %+v", m)
	}
}

func TestResolveTenantScoping(t *testing.T) {
	src := &fakeSource{entities: seedEntities()}
	r := New(src, "t2", nil)

	m, err := r.Resolve(context.Background(), "Acme Corporation", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if m == nil || m.Entity.ID != "org_2" {
		t.Fatalf("got %+v, want tenant t2's org_2", m)
	}

	// t2 has no property entity.
	m, _ = r.Resolve(context.Background(), "Riverside Plaza", "")
	if m != nil {
		t.Errorf("cross-tenant match leaked: %+v", m)
	}
}

func TestResolveCacheAndInvalidate(t *testing.T) {
	src := &fakeSource{entities: seedEntities()}
	r := New(src, "t1", nil)
	ctx := context.Background()

	r.Resolve(ctx, "acme", "")
	r.Resolve(ctx, "Riverside Plaza", "")
	if src.loads != 1 {
		t.Fatalf("source loaded %d times, want 1 (cached)", src.loads)
	}

	src.entities = append(src.entities, Entity{
		ID: "org_3", TenantID: "t1", Type: "company", Name: "Globex",
	})

	// Not visible until the cache is invalidated.
	if m, _ := r.Resolve(ctx, "Globex", ""); m != nil {
		t.Fatal("resolver auto-refreshed; cache must be explicit")
	}
	r.InvalidateCache()
	m, err := r.Resolve(ctx, "Globex", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if m == nil || m.Entity.ID != "org_3" {
		t.Fatalf("got %+v, want org_3 after invalidation", m)
	}
	if src.loads != 2 {
		t.Errorf("source loaded %d times, want 2", src.loads)
	}
}

func TestResolveSourceError(t *testing.T) {
	r := New(&fakeSource{err: errors.New("db closed")}, "t1", nil)
	if _, err := r.Resolve(context.Background(), "acme", ""); err == nil {
		t.Fatal("expected load error to propagate")
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	src := &fakeSource{entities: seedEntities()}
	r := New(src, "t1", nil)
	m, err := r.Resolve(context.Background(), "   ", "")
	if err != nil || m != nil {
		t.Fatalf("got (%+v, %v), want (nil, nil)", m, err)
	}
	if src.loads != 0 {
		t.Error("empty query should not touch the source")
	}
}
