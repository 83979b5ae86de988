package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
)

// TenantRepository implements repositories.TenantRepository using the
// central PostgreSQL database.
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a tenant repository over the central
// connection
func NewTenantRepository(db *sql.DB) repositories.TenantRepository {
	return &TenantRepository{db: db}
}

// Create registers a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *entities.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return fmt.Errorf("invalid tenant: %w", err)
	}

	query := `
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, $3)
	`
	createdAt := tenant.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, createdAt); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// Get retrieves a tenant by ID, or nil when unknown
func (r *TenantRepository) Get(ctx context.Context, id string) (*entities.Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		WHERE id = $1
	`
	tenant := &entities.Tenant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// List returns all registered tenants
func (r *TenantRepository) List(ctx context.Context) ([]*entities.Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*entities.Tenant
	for rows.Next() {
		tenant := &entities.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return tenants, nil
}

// Delete removes a tenant from the registry
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tenants WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}
