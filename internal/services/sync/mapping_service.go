package sync

import (
	"context"
	"fmt"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
)

// MappingService couples mapping bookkeeping with its propagation side
// effects: a first-time attach performs a one-shot pull of the central copy
// into the tenant, and both attach and detach keep the enumerator's cached
// tenant sets honest.
type MappingService struct {
	tenants    repositories.TenantRepository
	mappings   repositories.MappingRepository
	engine     *Engine
	enumerator *Enumerator
}

// NewMappingService creates a new MappingService.
func NewMappingService(tenants repositories.TenantRepository, mappings repositories.MappingRepository, engine *Engine, enumerator *Enumerator) *MappingService {
	return &MappingService{
		tenants:    tenants,
		mappings:   mappings,
		engine:     engine,
		enumerator: enumerator,
	}
}

// Attach links a tenant to a resource. A first-time attach pulls the
// central copy into the tenant database even though no dirty save occurred;
// re-attaching an already-attached pair is a no-op. Referencing a tenant
// unknown to the registry returns entities.ErrMissingMappingEntry.
func (s *MappingService) Attach(ctx context.Context, table string, globalID string, tenantID string) error {
	m := &entities.Mapping{GlobalID: globalID, TenantID: tenantID}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return err
	}

	attached, err := s.mappings.Exists(ctx, globalID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to check mapping for %q: %w", globalID, err)
	}
	if attached {
		return nil
	}

	if err := s.mappings.Attach(ctx, globalID, tenantID); err != nil {
		return fmt.Errorf("failed to attach %q to tenant %q: %w", globalID, tenantID, err)
	}
	s.enumerator.Invalidate(globalID)

	return s.engine.Pull(ctx, table, globalID, tenantID)
}

// Detach unlinks a tenant from a resource; the tenant keeps its local copy
// but stops receiving propagation. Referencing an unknown tenant returns
// entities.ErrMissingMappingEntry.
func (s *MappingService) Detach(ctx context.Context, globalID string, tenantID string) error {
	m := &entities.Mapping{GlobalID: globalID, TenantID: tenantID}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return err
	}

	if err := s.mappings.Detach(ctx, globalID, tenantID); err != nil {
		return fmt.Errorf("failed to detach %q from tenant %q: %w", globalID, tenantID, err)
	}
	s.enumerator.Invalidate(globalID)
	return nil
}

// TenantsFor returns the tenants currently attached to a resource.
func (s *MappingService) TenantsFor(ctx context.Context, globalID string) ([]string, error) {
	return s.mappings.TenantsFor(ctx, globalID)
}

// Entries returns the full mapping rows for a resource, including when each
// tenant was attached.
func (s *MappingService) Entries(ctx context.Context, globalID string) ([]*entities.Mapping, error) {
	return s.mappings.Entries(ctx, globalID)
}

func (s *MappingService) requireTenant(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to look up tenant %q: %w", tenantID, err)
	}
	if tenant == nil {
		return fmt.Errorf("%w: tenant %q", entities.ErrMissingMappingEntry, tenantID)
	}
	return nil
}
