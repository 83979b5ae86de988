package sync

import (
	"fmt"
	"sync"

	"github.com/eelco2k/tenancy/internal/entities"
)

// defaultKeyColumns are never copied by a full-copy creation policy: keys
// and timestamps belong to each database, not to the logical resource.
var defaultKeyColumns = []string{"id", "created_at", "updated_at"}

// Definition declares how one resource table participates in
// synchronization: which attributes are mirrored, which column carries the
// global identifier, and how each side materializes a missing copy.
type Definition struct {
	// Table is the resource table name, identical in every database.
	Table string

	// GlobalIDColumn carries the cross-database identifier.
	// Defaults to "global_id".
	GlobalIDColumn string

	// SyncedAttributes are mirrored verbatim on every update. Attributes
	// outside this set are private to each database and never overwritten
	// by propagation.
	SyncedAttributes []string

	// KeyColumns are excluded from full-copy creation. Defaults to
	// id, created_at and updated_at.
	KeyColumns []string

	// CentralCreation is the policy used when materializing the resource
	// into the central database. nil means full copy.
	CentralCreation *CreationPolicy

	// TenantCreation is the policy used when materializing the resource
	// into a tenant database. nil means full copy.
	TenantCreation *CreationPolicy
}

// Validate checks if the definition is usable
func (d *Definition) Validate() error {
	if d.Table == "" {
		return fmt.Errorf("definition table is required")
	}
	if len(d.SyncedAttributes) == 0 {
		return fmt.Errorf("definition for %q declares no synced attributes", d.Table)
	}
	return nil
}

// IsSynced reports whether the attribute is mirrored across databases.
func (d *Definition) IsSynced(name string) bool {
	for _, attr := range d.SyncedAttributes {
		if attr == name {
			return true
		}
	}
	return false
}

// CreationFor returns the creation policy of the given side. The policy is
// asked of the target role, never the source: central and tenant decide
// independently how a foreign record is materialized locally.
func (d *Definition) CreationFor(role entities.Role) *CreationPolicy {
	if role == entities.RoleCentral {
		return d.CentralCreation
	}
	return d.TenantCreation
}

// Registry holds the sync definitions of every participating resource
// table. Consumers register definitions at startup; the engine consults the
// registry on every save.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition, applying defaults for the global identifier
// column and key columns. Registering the same table twice replaces the
// earlier definition.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid sync definition: %w", err)
	}
	if def.GlobalIDColumn == "" {
		def.GlobalIDColumn = "global_id"
	}
	if def.KeyColumns == nil {
		def.KeyColumns = append([]string(nil), defaultKeyColumns...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Table] = def
	return nil
}

// Definition returns the definition for a table, if registered.
func (r *Registry) Definition(table string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[table]
	return def, ok
}

// Tables returns the registered table names.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]string, 0, len(r.defs))
	for table := range r.defs {
		tables = append(tables, table)
	}
	return tables
}
