package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
}

// DatabaseConfig represents database configuration. The central database is
// addressed directly; tenant databases share the same server and derive
// their database name from TenantDBPrefix plus the tenant ID.
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string // central database name
	TenantDBPrefix string // prefix for per-tenant database names
	SSLMode        string
}

// CacheConfig configures the tenant-set cache used by target enumeration.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTLMinutes int // Time-to-live for cached tenant sets in minutes
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Find project root
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot) // Project root

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "tenancy")
	viper.SetDefault("DB_NAME", "tenancy_central")
	viper.SetDefault("TENANT_DB_PREFIX", "tenancy_tenant_")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Mapping cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_ENTRIES", 4096)
	viper.SetDefault("CACHE_TTL_MINUTES", 5)

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	// DB_PASSWORD is required for security
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:           viper.GetString("DB_HOST"),
			Port:           viper.GetInt("DB_PORT"),
			User:           viper.GetString("DB_USER"),
			Password:       dbPassword,
			Database:       viper.GetString("DB_NAME"),
			TenantDBPrefix: viper.GetString("TENANT_DB_PREFIX"),
			SSLMode:        viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
			TTLMinutes: viper.GetInt("CACHE_TTL_MINUTES"),
		},
	}

	return config, nil
}

// ConnectionString returns the PostgreSQL connection string for the central
// database.
func (c *DatabaseConfig) ConnectionString() string {
	return c.connectionString(c.Database)
}

// TenantConnectionString returns the PostgreSQL connection string for one
// tenant database.
func (c *DatabaseConfig) TenantConnectionString(tenantID string) string {
	return c.connectionString(c.TenantDatabaseName(tenantID))
}

// TenantDatabaseName derives the database name holding a tenant's data.
func (c *DatabaseConfig) TenantDatabaseName(tenantID string) string {
	return c.TenantDBPrefix + tenantID
}

func (c *DatabaseConfig) connectionString(dbname string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		dbname,
		c.SSLMode,
	)
}
