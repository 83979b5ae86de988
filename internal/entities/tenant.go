package entities

import (
	"fmt"
	"time"
)

// Tenant is an entry in the central tenant registry. Every tenant owns one
// isolated database; the connection manager derives its database name from
// the tenant ID.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Validate checks if the tenant is valid
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if t.Name == "" {
		return fmt.Errorf("tenant name is required")
	}
	return nil
}
