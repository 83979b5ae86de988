package sync

import (
	"context"
	"testing"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/pkg/cache/memorycache"
)

func targetSet(targets []entities.Target) map[string]bool {
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t.String()] = true
	}
	return set
}

func TestEnumerator_CentralOrigin(t *testing.T) {
	mappings := newMemoryMappings()
	ctx := context.Background()
	mappings.Attach(ctx, "acme", "t1")
	mappings.Attach(ctx, "acme", "t2")

	e := NewEnumerator(mappings, nil, 0)
	targets, err := e.Targets(ctx, "acme", entities.Central())
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}

	set := targetSet(targets)
	if set["central"] {
		t.Error("central origin must not target itself")
	}
	if !set["tenant:t1"] || !set["tenant:t2"] {
		t.Errorf("expected both tenants, got %v", set)
	}
}

func TestEnumerator_TenantOriginExcludesSelfIncludesCentral(t *testing.T) {
	mappings := newMemoryMappings()
	ctx := context.Background()
	mappings.Attach(ctx, "acme", "t1")
	mappings.Attach(ctx, "acme", "t2")
	mappings.Attach(ctx, "acme", "t3")

	e := NewEnumerator(mappings, nil, 0)
	targets, err := e.Targets(ctx, "acme", entities.TenantTarget("t2"))
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}

	set := targetSet(targets)
	if !set["central"] {
		t.Error("tenant origin must always target central")
	}
	if set["tenant:t2"] {
		t.Error("origin tenant must be excluded")
	}
	if !set["tenant:t1"] || !set["tenant:t3"] {
		t.Errorf("expected sibling tenants, got %v", set)
	}
}

func TestEnumerator_UnmappedResource(t *testing.T) {
	e := NewEnumerator(newMemoryMappings(), nil, 0)

	targets, err := e.Targets(context.Background(), "ghost", entities.TenantTarget("t1"))
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if len(targets) != 1 || !targets[0].IsCentral() {
		t.Errorf("expected only central for unmapped resource, got %v", targets)
	}
}

func TestEnumerator_CacheAndInvalidate(t *testing.T) {
	mappings := newMemoryMappings()
	ctx := context.Background()
	mappings.Attach(ctx, "acme", "t1")

	c := memorycache.New(memorycache.Config{MaxEntries: 16, DefaultTTL: time.Minute})
	defer c.Close()
	e := NewEnumerator(mappings, c, time.Minute)

	if _, err := e.Targets(ctx, "acme", entities.Central()); err != nil {
		t.Fatalf("Targets failed: %v", err)
	}

	// Attach bypassing the enumerator; the stale cached set hides t2.
	mappings.Attach(ctx, "acme", "t2")
	targets, _ := e.Targets(ctx, "acme", entities.Central())
	if targetSet(targets)["tenant:t2"] {
		t.Fatal("expected cached tenant set to be served")
	}

	e.Invalidate("acme")
	targets, _ = e.Targets(ctx, "acme", entities.Central())
	if !targetSet(targets)["tenant:t2"] {
		t.Error("expected invalidation to surface the new tenant")
	}
}

func TestEnumerator_InvalidOrigin(t *testing.T) {
	e := NewEnumerator(newMemoryMappings(), nil, 0)

	if _, err := e.Targets(context.Background(), "acme", entities.Target{Role: "bogus"}); err == nil {
		t.Error("expected error for invalid origin")
	}
}
