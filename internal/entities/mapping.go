package entities

import (
	"fmt"
	"time"
)

// Mapping associates a global identifier with a tenant that holds (or must
// receive) a copy of the resource. Mappings live in the central database;
// they are the only source of truth for target enumeration.
type Mapping struct {
	GlobalID  string
	TenantID  string
	CreatedAt time.Time
}

// Validate checks if the mapping is valid
func (m *Mapping) Validate() error {
	if m.GlobalID == "" {
		return fmt.Errorf("global ID is required")
	}
	if m.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	return nil
}
