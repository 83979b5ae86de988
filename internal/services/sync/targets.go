package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
	"github.com/eelco2k/tenancy/pkg/cache"
)

// Enumerator computes the full set of databases that hold (or should hold)
// a copy of a resource. The set is always derived from the central mapping
// store, even when the origin is a tenant: tenant databases do not know the
// topology. Completeness is a correctness requirement: a tenant omitted
// from one pass silently diverges instead of failing loudly.
type Enumerator struct {
	mappings repositories.MappingRepository

	// Optional read-through cache for tenant sets, invalidated on
	// attach/detach. nil disables caching.
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewEnumerator creates a target enumerator. A nil cache disables the
// tenant-set cache.
func NewEnumerator(mappings repositories.MappingRepository, c cache.Cache, cacheTTL time.Duration) *Enumerator {
	return &Enumerator{
		mappings: mappings,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Targets returns every database that must receive a propagated write for
// the resource: the central database (unless it is the origin) plus every
// attached tenant except the origin tenant. Ordering is insignificant.
func (e *Enumerator) Targets(ctx context.Context, globalID string, origin entities.Target) ([]entities.Target, error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}

	tenants, err := e.tenantsFor(ctx, globalID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets for %q: %w", globalID, err)
	}

	targets := make([]entities.Target, 0, len(tenants)+1)
	if !origin.IsCentral() {
		targets = append(targets, entities.Central())
	}
	for _, tenantID := range tenants {
		if origin.Role == entities.RoleTenant && origin.TenantID == tenantID {
			continue
		}
		targets = append(targets, entities.TenantTarget(tenantID))
	}
	return targets, nil
}

// Invalidate drops the cached tenant set for one resource. Called after
// attach/detach, locally or via the cross-instance invalidator.
func (e *Enumerator) Invalidate(globalID string) {
	if e.cache == nil {
		return
	}
	_ = e.cache.Delete(context.Background(), cacheKey(globalID))
}

// InvalidateAll drops every cached tenant set.
func (e *Enumerator) InvalidateAll() {
	if e.cache == nil {
		return
	}
	_ = e.cache.Clear(context.Background())
}

func (e *Enumerator) tenantsFor(ctx context.Context, globalID string) ([]string, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, cacheKey(globalID)); ok {
			if tenants, ok := cached.([]string); ok {
				return tenants, nil
			}
		}
	}

	tenants, err := e.mappings.TenantsFor(ctx, globalID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Set(ctx, cacheKey(globalID), tenants, e.cacheTTL)
	}
	return tenants, nil
}

func cacheKey(globalID string) string {
	return "mappings:" + globalID
}
