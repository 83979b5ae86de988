package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eelco2k/tenancy/internal/infrastructure/config"
	"github.com/eelco2k/tenancy/internal/infrastructure/database"
	"github.com/eelco2k/tenancy/internal/services/sync"
	"github.com/eelco2k/tenancy/pkg/cache/memorycache"
	"github.com/eelco2k/tenancy/pkg/events"
)

// tenant databases used by the scenarios. They are created on demand from
// the central connection.
var testTenants = []string{"e2e1", "e2e2", "e2e3"}

// Env holds the fully wired stack the scenarios run against.
type Env struct {
	Manager  *database.Manager
	Registry *sync.Registry
	Engine   *sync.Engine
	Mappings *sync.MappingService
	Bus      *events.Bus
}

// Setup connects to the test databases, migrates them, and wires the full
// propagation stack. Tests are skipped when no database is reachable.
func Setup(t *testing.T) *Env {
	t.Helper()

	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("skipping e2e: config unavailable: %v", err)
	}

	manager, err := database.NewManager(&cfg.Database)
	if err != nil {
		t.Skipf("skipping e2e: central database unreachable: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}
	migrations := filepath.Join(projectRoot, "internal/infrastructure/database/migrations/postgres")

	if err := manager.MigrateCentral(filepath.Join(migrations, "central")); err != nil {
		t.Fatalf("failed to migrate central: %v", err)
	}
	for _, tenantID := range testTenants {
		ensureTenantDatabase(t, manager, &cfg.Database, tenantID)
		if err := manager.MigrateTenant(tenantID, filepath.Join(migrations, "tenant")); err != nil {
			t.Fatalf("failed to migrate tenant %s: %v", tenantID, err)
		}
	}

	cleanup(t, manager)

	registry := sync.NewRegistry()
	if err := registry.Register(&sync.Definition{
		Table:            "users",
		SyncedAttributes: []string{"name", "email", "role"},
	}); err != nil {
		t.Fatalf("failed to register definition: %v", err)
	}

	tenantSets := memorycache.New(memorycache.Config{MaxEntries: 128, DefaultTTL: time.Minute})
	enumerator := sync.NewEnumerator(manager.Mappings(), tenantSets, time.Minute)

	bus := events.NewBus(0)
	t.Cleanup(bus.Close)

	engine := sync.NewEngine(registry, manager, enumerator, nil, bus, nil)
	mappings := sync.NewMappingService(manager.Tenants(), manager.Mappings(), engine, enumerator)

	return &Env{
		Manager:  manager,
		Registry: registry,
		Engine:   engine,
		Mappings: mappings,
		Bus:      bus,
	}
}

// ensureTenantDatabase creates the tenant database when it does not exist.
func ensureTenantDatabase(t *testing.T, manager *database.Manager, cfg *config.DatabaseConfig, tenantID string) {
	t.Helper()

	name := cfg.TenantDatabaseName(tenantID)
	var exists bool
	err := manager.Central().DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check database %s: %v", name, err)
	}
	if exists {
		return
	}
	if _, err := manager.Central().DB.Exec(fmt.Sprintf("CREATE DATABASE %q", name)); err != nil {
		t.Fatalf("failed to create database %s: %v", name, err)
	}
}

// cleanup removes scenario data from every database.
func cleanup(t *testing.T, manager *database.Manager) {
	t.Helper()

	ctx := context.Background()
	central := manager.Central().DB
	for _, stmt := range []string{
		"DELETE FROM tenant_resource_mappings",
		"DELETE FROM users",
		"DELETE FROM tenants",
	} {
		if _, err := central.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to clean central: %v", err)
		}
	}

	for _, tenantID := range testTenants {
		pg, err := manager.Tenant(tenantID)
		if err != nil {
			t.Fatalf("failed to open tenant %s: %v", tenantID, err)
		}
		if _, err := pg.DB.ExecContext(ctx, "DELETE FROM users"); err != nil {
			t.Fatalf("failed to clean tenant %s: %v", tenantID, err)
		}
	}
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
