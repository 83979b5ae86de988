package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/infrastructure/config"
	"github.com/eelco2k/tenancy/internal/infrastructure/database"
	"github.com/eelco2k/tenancy/internal/services/sync"
	"github.com/eelco2k/tenancy/pkg/cache"
	"github.com/eelco2k/tenancy/pkg/cache/memorycache"
	"github.com/spf13/cobra"
)

var (
	envFlag string

	manager  *database.Manager
	mappings *sync.MappingService
)

var rootCmd = &cobra.Command{
	Use:   "tenantctl",
	Short: "Administration tool for tenants and resource mappings",
	Long: `Administration tool for tenants and resource mappings.
Manages the tenant registry in the central database and the
resource-to-tenant mappings that drive synchronization.`,
	PersistentPreRun:  setup,
	PersistentPostRun: teardown,
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage the tenant registry",
}

var tenantAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Register a tenant",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		tenant := &entities.Tenant{ID: args[0], Name: args[1]}
		if err := manager.Tenants().Create(cmd.Context(), tenant); err != nil {
			log.Fatalf("Failed to create tenant: %v", err)
		}
		fmt.Printf("Tenant %q registered\n", tenant.ID)
	},
}

var tenantRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a tenant from the registry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := manager.Tenants().Delete(cmd.Context(), args[0]); err != nil {
			log.Fatalf("Failed to delete tenant: %v", err)
		}
		fmt.Printf("Tenant %q removed\n", args[0])
	},
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tenants",
	Run: func(cmd *cobra.Command, args []string) {
		tenants, err := manager.Tenants().List(cmd.Context())
		if err != nil {
			log.Fatalf("Failed to list tenants: %v", err)
		}
		for _, t := range tenants {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt.Format(time.RFC3339))
		}
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <table> <global-id> <tenant-id>",
	Short: "Attach a tenant to a resource",
	Long: `Attach a tenant to a resource. A first-time attach copies the
central version of the resource into the tenant database.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		if err := mappings.Attach(cmd.Context(), args[0], args[1], args[2]); err != nil {
			log.Fatalf("Failed to attach: %v", err)
		}
		fmt.Printf("Resource %q attached to tenant %q\n", args[1], args[2])
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach <global-id> <tenant-id>",
	Short: "Detach a tenant from a resource",
	Long: `Detach a tenant from a resource. The tenant keeps its local copy
but stops receiving synchronized changes.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := mappings.Detach(cmd.Context(), args[0], args[1]); err != nil {
			log.Fatalf("Failed to detach: %v", err)
		}
		fmt.Printf("Resource %q detached from tenant %q\n", args[0], args[1])
	},
}

var mappingsCmd = &cobra.Command{
	Use:   "mappings <global-id>",
	Short: "Show the tenants attached to a resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := mappings.Entries(cmd.Context(), args[0])
		if err != nil {
			log.Fatalf("Failed to list mappings: %v", err)
		}
		if len(entries) == 0 {
			fmt.Printf("Resource %q is attached to no tenants\n", args[0])
			return
		}
		for _, m := range entries {
			fmt.Printf("%s\t%s\n", m.TenantID, m.CreatedAt.Format(time.RFC3339))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	tenantCmd.AddCommand(tenantAddCmd)
	tenantCmd.AddCommand(tenantRemoveCmd)
	tenantCmd.AddCommand(tenantListCmd)

	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(detachCmd)
	rootCmd.AddCommand(mappingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	manager, err = database.NewManager(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to central database: %v", err)
	}

	var tenantSets cache.Cache
	if cfg.Cache.Enabled {
		tenantSets = memorycache.New(memorycache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			DefaultTTL: time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		})
	}

	registry := sync.NewRegistry()
	if err := registry.Register(&sync.Definition{
		Table:            "users",
		SyncedAttributes: []string{"name", "email", "role"},
	}); err != nil {
		log.Fatalf("Failed to register sync definition: %v", err)
	}

	enumerator := sync.NewEnumerator(manager.Mappings(), tenantSets, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	engine := sync.NewEngine(registry, manager, enumerator, nil, nil, nil)
	mappings = sync.NewMappingService(manager.Tenants(), manager.Mappings(), engine, enumerator)
}

func teardown(cmd *cobra.Command, args []string) {
	if manager != nil {
		if err := manager.Close(); err != nil {
			log.Printf("Failed to close database connections: %v", err)
		}
	}
}
