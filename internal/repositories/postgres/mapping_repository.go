package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
)

// MappingChannel is the Postgres NOTIFY channel carrying mapping changes.
// Other instances listen on it to invalidate their cached tenant sets.
const MappingChannel = "tenancy_mapping_changed"

// MappingRepository implements repositories.MappingRepository using the
// central PostgreSQL database.
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a mapping repository over the central
// connection
func NewMappingRepository(db *sql.DB) repositories.MappingRepository {
	return &MappingRepository{db: db}
}

// Attach records that the tenant holds a copy of the resource. Attaching an
// already-attached pair is a no-op.
func (r *MappingRepository) Attach(ctx context.Context, globalID string, tenantID string) error {
	query := `
		INSERT INTO tenant_resource_mappings (global_id, tenant_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (global_id, tenant_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, globalID, tenantID, time.Now()); err != nil {
		return fmt.Errorf("failed to attach mapping: %w", err)
	}
	return r.notify(ctx, globalID)
}

// Detach removes the pair.
func (r *MappingRepository) Detach(ctx context.Context, globalID string, tenantID string) error {
	query := `
		DELETE FROM tenant_resource_mappings
		WHERE global_id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, globalID, tenantID); err != nil {
		return fmt.Errorf("failed to detach mapping: %w", err)
	}
	return r.notify(ctx, globalID)
}

// TenantsFor returns every tenant attached to the resource, in attach order.
func (r *MappingRepository) TenantsFor(ctx context.Context, globalID string) ([]string, error) {
	query := `
		SELECT tenant_id
		FROM tenant_resource_mappings
		WHERE global_id = $1
		ORDER BY created_at, tenant_id
	`
	rows, err := r.db.QueryContext(ctx, query, globalID)
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		tenants = append(tenants, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return tenants, nil
}

// Entries returns the full mapping rows for the resource, in attach order.
func (r *MappingRepository) Entries(ctx context.Context, globalID string) ([]*entities.Mapping, error) {
	query := `
		SELECT global_id, tenant_id, created_at
		FROM tenant_resource_mappings
		WHERE global_id = $1
		ORDER BY created_at, tenant_id
	`
	rows, err := r.db.QueryContext(ctx, query, globalID)
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*entities.Mapping
	for rows.Next() {
		m := &entities.Mapping{}
		if err := rows.Scan(&m.GlobalID, &m.TenantID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

// Exists reports whether the pair is attached.
func (r *MappingRepository) Exists(ctx context.Context, globalID string, tenantID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tenant_resource_mappings
			WHERE global_id = $1 AND tenant_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, globalID, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check mapping: %w", err)
	}
	return exists, nil
}

// notify broadcasts the change so other instances drop their cached tenant
// set for this resource. A notification failure is not fatal: the cache TTL
// bounds staleness.
func (r *MappingRepository) notify(ctx context.Context, globalID string) error {
	_, _ = r.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", MappingChannel, globalID)
	return nil
}
