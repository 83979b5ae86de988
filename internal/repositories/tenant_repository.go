package repositories

import (
	"context"

	"github.com/eelco2k/tenancy/internal/entities"
)

// TenantRepository defines the interface for the central tenant registry
type TenantRepository interface {
	// Create registers a new tenant
	Create(ctx context.Context, tenant *entities.Tenant) error

	// Get retrieves a tenant by ID, or nil when unknown
	Get(ctx context.Context, id string) (*entities.Tenant, error)

	// List returns all registered tenants
	List(ctx context.Context) ([]*entities.Tenant, error)

	// Delete removes a tenant from the registry
	Delete(ctx context.Context, id string) error
}
