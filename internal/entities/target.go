package entities

import "fmt"

// Role identifies which side of the topology a database plays.
type Role string

const (
	// RoleCentral is the single shared database that owns the mapping registry.
	RoleCentral Role = "central"

	// RoleTenant is one isolated per-tenant database.
	RoleTenant Role = "tenant"
)

// Target identifies one database in the topology: either the central
// database or a single tenant database.
// A Target with RoleCentral and an empty TenantID is the "central" sentinel
// used in notifications and target enumeration.
type Target struct {
	Role     Role
	TenantID string // empty when Role is RoleCentral
}

// Central returns the target identifying the central database.
func Central() Target {
	return Target{Role: RoleCentral}
}

// TenantTarget returns the target identifying a single tenant database.
func TenantTarget(tenantID string) Target {
	return Target{Role: RoleTenant, TenantID: tenantID}
}

// IsCentral reports whether the target is the central database.
func (t Target) IsCentral() bool {
	return t.Role == RoleCentral
}

// String returns "central" or "tenant:<id>".
func (t Target) String() string {
	if t.IsCentral() {
		return string(RoleCentral)
	}
	return fmt.Sprintf("%s:%s", RoleTenant, t.TenantID)
}

// Validate checks that the target is well formed
func (t Target) Validate() error {
	switch t.Role {
	case RoleCentral:
		if t.TenantID != "" {
			return fmt.Errorf("central target must not carry a tenant ID")
		}
	case RoleTenant:
		if t.TenantID == "" {
			return fmt.Errorf("tenant target requires a tenant ID")
		}
	default:
		return fmt.Errorf("unknown role: %q", t.Role)
	}
	return nil
}
