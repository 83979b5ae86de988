package repositories

import (
	"context"

	"github.com/eelco2k/tenancy/internal/entities"
)

// MappingRepository is the central registry of which tenants hold a copy of
// which global identifier. It lives in the central database only; tenant
// databases never know the full topology.
type MappingRepository interface {
	// Attach records that the tenant holds a copy of the resource.
	// Attaching an already-attached pair is a no-op.
	Attach(ctx context.Context, globalID string, tenantID string) error

	// Detach removes the pair, excluding the tenant from future propagation
	// for this resource.
	Detach(ctx context.Context, globalID string, tenantID string) error

	// TenantsFor returns every tenant currently attached to the resource.
	TenantsFor(ctx context.Context, globalID string) ([]string, error)

	// Entries returns the full mapping rows for the resource, including when
	// each tenant was attached.
	Entries(ctx context.Context, globalID string) ([]*entities.Mapping, error)

	// Exists reports whether the pair is attached.
	Exists(ctx context.Context, globalID string, tenantID string) (bool, error)
}
