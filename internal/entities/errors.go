package entities

import (
	"errors"
	"fmt"
)

// ErrIdentityConflict is returned when inserting a record whose global
// identifier already exists in the target database. The conflict is fatal
// to that single target; the cascade continues with the remaining targets.
var ErrIdentityConflict = errors.New("global identifier already exists in target database")

// ErrNotSyncMaster is returned when a tenant-side save changes synced
// attributes while no central database is reachable. Synced attributes are
// only writable from a context that can resolve propagation.
var ErrNotSyncMaster = errors.New("synced attributes changed without a reachable central database")

// ErrMissingMappingEntry is returned by attach/detach operations that
// reference a tenant unknown to the central registry.
var ErrMissingMappingEntry = errors.New("unknown tenant in mapping operation")

// TargetWriteError wraps a create or update failure against one target
// database. Sibling targets are unaffected; the engine collects these and
// reports them together once the cascade completes.
type TargetWriteError struct {
	Target   Target
	GlobalID string
	Err      error
}

// Error implements the error interface.
func (e *TargetWriteError) Error() string {
	return fmt.Sprintf("write to %s for %q failed: %v", e.Target, e.GlobalID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TargetWriteError) Unwrap() error {
	return e.Err
}
