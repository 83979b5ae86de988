package sync

import (
	"sync"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/oklog/ulid/v2"
)

// Generator produces fresh globally-unique identifier strings.
type Generator func() string

var (
	generatorMu      sync.RWMutex
	defaultGenerator Generator = func() string { return ulid.Make().String() }
)

// SetDefaultGenerator overrides the process-wide identifier generator.
// Passing nil restores the ULID default.
func SetDefaultGenerator(g Generator) {
	generatorMu.Lock()
	defer generatorMu.Unlock()
	if g == nil {
		g = func() string { return ulid.Make().String() }
	}
	defaultGenerator = g
}

// DefaultGenerator returns the current process-wide identifier generator.
func DefaultGenerator() Generator {
	generatorMu.RLock()
	defer generatorMu.RUnlock()
	return defaultGenerator
}

// Resolver assigns global identifiers to records.
//
// Collisions are not retried: the generator's collision probability is
// assumed negligible, and a uniqueness violation at write time surfaces as
// entities.ErrIdentityConflict from the repository instead.
type Resolver struct {
	generate Generator
}

// NewResolver creates a resolver. A nil generator uses the process-wide
// default.
func NewResolver(g Generator) *Resolver {
	return &Resolver{generate: g}
}

// EnsureIdentity returns the record's global identifier, generating and
// setting a fresh one on the record when the column is empty. It must run
// before any other propagation logic so every copy links to the same
// logical resource.
func (r *Resolver) EnsureIdentity(rec *entities.Record, column string) string {
	if id := rec.GlobalID(column); id != "" {
		return id
	}

	gen := r.generate
	if gen == nil {
		gen = DefaultGenerator()
	}
	id := gen()
	rec.Set(column, id)
	return id
}
