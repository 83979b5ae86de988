package postgres_test

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/eelco2k/tenancy/internal/infrastructure/config"
	"github.com/eelco2k/tenancy/internal/infrastructure/database"
	_ "github.com/lib/pq"
)

// SetupTestDB connects to the central test database and runs the central
// migrations. Tests are skipped when no database is reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Initialize test config
	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping: test database not configured: %v", err)
	}

	// Connect to database
	pg, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		t.Skipf("Skipping: test database not reachable: %v", err)
	}

	// Run central migrations
	if err := pg.RunMigrations("../../../internal/infrastructure/database/migrations/postgres/central"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pg.DB
}

// CleanupTestDB closes the database connection and cleans up test data
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	// Clean up all tables
	tables := []string{"tenant_resource_mappings", "users", "tenants"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("Warning: Failed to clean up table %s: %v", table, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
