package repositories

import (
	"context"

	"github.com/eelco2k/tenancy/internal/entities"
)

// RecordRepository provides access to synced-resource rows in one database.
// An implementation is bound to a single database connection; callers pick
// the database by picking the repository instance, so there is never an
// ambient "current database" inside the engine.
type RecordRepository interface {
	// FindByGlobalID returns the row in table whose global identifier column
	// equals globalID, or nil when no such row exists.
	FindByGlobalID(ctx context.Context, table string, globalIDColumn string, globalID string) (*entities.Record, error)

	// Insert creates a new row from the attribute map. A unique-constraint
	// violation on the global identifier column is reported as
	// entities.ErrIdentityConflict.
	Insert(ctx context.Context, table string, attrs map[string]interface{}) error

	// Update writes the attribute map to the row identified by globalID.
	// Attributes absent from the map are left untouched.
	Update(ctx context.Context, table string, globalIDColumn string, globalID string, attrs map[string]interface{}) error
}
