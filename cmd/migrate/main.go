package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/eelco2k/tenancy/internal/infrastructure/config"
	"github.com/eelco2k/tenancy/internal/infrastructure/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

const migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"

var (
	envFlag        string
	tenantFlag     string
	allTenantsFlag bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Schema migration tool for the central and tenant databases",
	Long: `Schema migration tool for the central and tenant databases.
Without flags it targets the central database. Use --tenant to migrate a
single tenant database, or --all-tenants to migrate every registered
tenant.`,
	PersistentPreRun: loadConfig,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations (default: 1)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&tenantFlag, "tenant", "t", "", "Target a single tenant database")
	rootCmd.PersistentFlags().BoolVar(&allTenantsFlag, "all-tenants", false, "Target every registered tenant database")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func loadConfig(cmd *cobra.Command, args []string) {
	log.Printf("Using environment: %s", envFlag)

	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if tenantFlag != "" && allTenantsFlag {
		log.Fatal("--tenant and --all-tenants are mutually exclusive")
	}
}

// targets resolves the flag combination into one connection string per
// database to migrate, paired with the matching migrations directory.
type migrationTarget struct {
	label   string
	connStr string
	path    string
}

func resolveTargets() ([]migrationTarget, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	base := filepath.Join(projectRoot, migrationsPathSuffix)

	if tenantFlag != "" {
		return []migrationTarget{{
			label:   "tenant " + tenantFlag,
			connStr: cfg.Database.TenantConnectionString(tenantFlag),
			path:    filepath.Join(base, "tenant"),
		}}, nil
	}

	if allTenantsFlag {
		ids, err := listTenantIDs()
		if err != nil {
			return nil, err
		}
		var targets []migrationTarget
		for _, id := range ids {
			targets = append(targets, migrationTarget{
				label:   "tenant " + id,
				connStr: cfg.Database.TenantConnectionString(id),
				path:    filepath.Join(base, "tenant"),
			})
		}
		return targets, nil
	}

	return []migrationTarget{{
		label:   "central",
		connStr: cfg.Database.ConnectionString(),
		path:    filepath.Join(base, "central"),
	}}, nil
}

// listTenantIDs reads the tenant registry from the central database.
func listTenantIDs() ([]string, error) {
	mgr, err := database.NewManager(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to central database: %w", err)
	}
	defer mgr.Close()

	tenants, err := mgr.Tenants().List(rootCmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// forEachTarget opens each target database in turn and hands a migrate
// instance to fn.
func forEachTarget(fn func(label string, m *migrate.Migrate) error) {
	targets, err := resolveTargets()
	if err != nil {
		log.Fatalf("Failed to resolve targets: %v", err)
	}

	for _, target := range targets {
		pg, err := database.Open(target.connStr)
		if err != nil {
			log.Fatalf("Failed to connect to %s: %v", target.label, err)
		}

		m, err := createMigrate(pg, target.path)
		if err != nil {
			pg.Close()
			log.Fatalf("Failed to create migrate instance for %s: %v", target.label, err)
		}

		err = fn(target.label, m)
		m.Close()
		if err != nil {
			log.Fatalf("Migration of %s failed: %v", target.label, err)
		}
	}
}

func runUp(cmd *cobra.Command, args []string) {
	forEachTarget(func(label string, m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if err == migrate.ErrNoChange {
				log.Printf("%s: no migrations to apply", label)
				return nil
			}
			return err
		}
		log.Printf("%s: migration up completed", label)
		return nil
	})
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &steps)
	}

	forEachTarget(func(label string, m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if err == migrate.ErrNoChange {
				log.Printf("%s: no migrations to rollback", label)
				return nil
			}
			return err
		}
		log.Printf("%s: rolled back %d migration(s)", label, steps)
		return nil
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	forEachTarget(func(label string, m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			log.Printf("%s: no migrations applied yet", label)
			return nil
		}
		if err != nil {
			return err
		}
		if dirty {
			log.Printf("%s: version %d (dirty - migration may have failed)", label, version)
		} else {
			log.Printf("%s: version %d", label, version)
		}
		return nil
	})
}

func runForce(cmd *cobra.Command, args []string) {
	var version int
	fmt.Sscanf(args[0], "%d", &version)

	forEachTarget(func(label string, m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return err
		}
		log.Printf("%s: forced to version %d", label, version)
		return nil
	})
}

func createMigrate(pg *database.Postgres, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := database.NewMigrateDriver(pg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
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
