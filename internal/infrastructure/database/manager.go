package database

import (
	"fmt"
	"sync"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/infrastructure/config"
	"github.com/eelco2k/tenancy/internal/repositories"
	"github.com/eelco2k/tenancy/internal/repositories/postgres"
)

// Manager owns the central database connection and lazily opens one
// connection per tenant database. It implements the engine's store-provider
// contract: every lookup names its target explicitly, so no connection is
// ever "current" and nothing needs restoring when a cascade ends.
type Manager struct {
	mu  sync.Mutex
	cfg *config.DatabaseConfig

	central *Postgres
	tenants map[string]*Postgres
}

// NewManager connects to the central database and prepares lazy tenant
// connections.
func NewManager(cfg *config.DatabaseConfig) (*Manager, error) {
	central, err := Open(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to central database: %w", err)
	}
	return &Manager{
		cfg:     cfg,
		central: central,
		tenants: make(map[string]*Postgres),
	}, nil
}

// Central returns the central database connection.
func (m *Manager) Central() *Postgres {
	return m.central
}

// Tenant returns the connection for one tenant database, opening it on
// first use.
func (m *Manager) Tenant(tenantID string) (*Postgres, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pg, ok := m.tenants[tenantID]; ok {
		return pg, nil
	}

	pg, err := Open(m.cfg.TenantConnectionString(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tenant %q: %w", tenantID, err)
	}
	m.tenants[tenantID] = pg
	return pg, nil
}

// Records returns the record repository bound to the target database.
func (m *Manager) Records(target entities.Target) (repositories.RecordRepository, error) {
	if target.IsCentral() {
		return postgres.NewRecordRepository(m.central.DB), nil
	}
	pg, err := m.Tenant(target.TenantID)
	if err != nil {
		return nil, err
	}
	return postgres.NewRecordRepository(pg.DB), nil
}

// Mappings returns the mapping repository of the central database.
func (m *Manager) Mappings() repositories.MappingRepository {
	return postgres.NewMappingRepository(m.central.DB)
}

// Tenants returns the tenant registry of the central database.
func (m *Manager) Tenants() repositories.TenantRepository {
	return postgres.NewTenantRepository(m.central.DB)
}

// MigrateCentral applies the central schema migrations.
func (m *Manager) MigrateCentral(migrationsPath string) error {
	return m.central.RunMigrations(migrationsPath)
}

// MigrateTenant applies the tenant schema migrations to one tenant.
func (m *Manager) MigrateTenant(tenantID string, migrationsPath string) error {
	pg, err := m.Tenant(tenantID)
	if err != nil {
		return err
	}
	return pg.RunMigrations(migrationsPath)
}

// Close closes every open connection. Errors closing one connection do not
// prevent closing the rest.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for tenantID, pg := range m.tenants {
		if err := pg.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close tenant %q: %w", tenantID, err)
		}
	}
	m.tenants = make(map[string]*Postgres)

	if err := m.central.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close central: %w", err)
	}
	return firstErr
}
