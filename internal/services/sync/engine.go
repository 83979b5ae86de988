package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/infrastructure/metrics"
	"github.com/eelco2k/tenancy/internal/repositories"
	"github.com/eelco2k/tenancy/pkg/events"
)

// StoreProvider supplies per-database repositories. The engine selects the
// database for every operation by passing an explicit target; there is no
// ambient connection state to restore afterwards.
//
// Implemented by database.Manager in production and by in-memory fakes in
// tests.
type StoreProvider interface {
	// Records returns the record repository bound to the target database.
	Records(target entities.Target) (repositories.RecordRepository, error)

	// Mappings returns the mapping repository of the central database.
	Mappings() repositories.MappingRepository
}

// SavedPayload is the payload of events.ResourceSaved.
type SavedPayload struct {
	Record *entities.Record
	Origin entities.Target
}

// ForeignChangePayload is the payload of
// events.ResourceChangedInForeignDatabase. Target carries the database the
// write landed in; a central target is the "no tenant" sentinel.
type ForeignChangePayload struct {
	Record *entities.Record
	Target entities.Target
}

// Engine orchestrates propagation: it observes dirty saves of synced
// resources, enumerates the target databases, applies create-or-update per
// target, and repeats from each written target until every copy matches.
//
// Termination relies on two mechanisms: an empty synced-attribute delta is
// never written (so converged copies stop the chain), and targets already
// written within one cascade are not written again. Cascades for the same
// global identifier are serialized in-process, which keeps the
// delta-emptiness argument sound under concurrent callers.
type Engine struct {
	registry   *Registry
	stores     StoreProvider
	enumerator *Enumerator
	resolver   *Resolver
	bus        *events.Bus        // optional
	collector  *metrics.Collector // optional, nil-safe
	locks      keyedMutex
}

// NewEngine creates a propagation engine. bus and collector may be nil;
// a nil resolver uses the process-wide default generator.
func NewEngine(registry *Registry, stores StoreProvider, enumerator *Enumerator, resolver *Resolver, bus *events.Bus, collector *metrics.Collector) *Engine {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Engine{
		registry:   registry,
		stores:     stores,
		enumerator: enumerator,
		resolver:   resolver,
		bus:        bus,
		collector:  collector,
	}
}

// RecordSaved is the propagation entry point, called by the persistence
// layer after a record of a registered table was saved with at least one
// changed attribute. changed lists the modified attribute names; nil means
// every attribute may have changed (a fresh insert).
//
// Saves touching no synced attribute return immediately: no identity work,
// no writes, no notifications. Per-target write failures are collected and
// returned joined, after propagation to the remaining targets completed.
func (e *Engine) RecordSaved(ctx context.Context, origin entities.Target, rec *entities.Record, changed []string) error {
	def, ok := e.registry.Definition(rec.Table)
	if !ok {
		return nil
	}
	if err := origin.Validate(); err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	if !touchesSynced(def, changed) {
		return nil
	}

	globalID := e.resolver.EnsureIdentity(rec, def.GlobalIDColumn)

	// Synced attributes written on a tenant can only be propagated when the
	// central database is reachable from this context.
	if origin.Role == entities.RoleTenant {
		if _, err := e.stores.Records(entities.Central()); err != nil {
			return fmt.Errorf("%w: saving %q from %s: %v", entities.ErrNotSyncMaster, globalID, origin, err)
		}
	}

	unlock := e.locks.lock(globalID)
	defer unlock()

	// A resource saved in a tenant must be registered centrally, or future
	// enumerations from other origins will skip this tenant and its copy
	// silently diverges.
	if origin.Role == entities.RoleTenant {
		if err := e.ensureOriginMapping(ctx, globalID, origin.TenantID); err != nil {
			return err
		}
	}

	e.collector.CascadeStarted()
	e.publish(events.ResourceSaved, SavedPayload{Record: rec.Clone(), Origin: origin})

	return e.cascade(ctx, def, globalID, origin, rec)
}

// Pull performs the one-shot create-or-update of the central copy into a
// single tenant. Used when attaching a tenant to an existing resource: the
// attachment itself is the trigger, not a dirty save.
func (e *Engine) Pull(ctx context.Context, table string, globalID string, tenantID string) error {
	def, ok := e.registry.Definition(table)
	if !ok {
		return fmt.Errorf("table %q has no sync definition", table)
	}

	central, err := e.stores.Records(entities.Central())
	if err != nil {
		return fmt.Errorf("central database unavailable: %w", err)
	}
	source, err := central.FindByGlobalID(ctx, def.Table, def.GlobalIDColumn, globalID)
	if err != nil {
		return fmt.Errorf("failed to load central copy of %q: %w", globalID, err)
	}
	if source == nil {
		return fmt.Errorf("resource %q has no central copy", globalID)
	}

	unlock := e.locks.lock(globalID)
	defer unlock()

	target := entities.TenantTarget(tenantID)
	written, wrote, err := e.applyToTarget(ctx, def, globalID, target, source)
	if err != nil {
		e.collector.TargetFailed()
		return &entities.TargetWriteError{Target: target, GlobalID: globalID, Err: err}
	}
	if wrote {
		e.collector.TargetWritten()
		e.publish(events.ResourceChangedInForeignDatabase, ForeignChangePayload{Record: written, Target: target})
	}
	return nil
}

// ensureOriginMapping attaches the origin tenant to the resource when no
// mapping exists yet, so the tenant that first created the resource stays
// part of every future fan-out.
func (e *Engine) ensureOriginMapping(ctx context.Context, globalID string, tenantID string) error {
	attached, err := e.stores.Mappings().Exists(ctx, globalID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to check mapping for %q: %w", globalID, err)
	}
	if attached {
		return nil
	}
	if err := e.stores.Mappings().Attach(ctx, globalID, tenantID); err != nil {
		return fmt.Errorf("failed to register origin mapping for %q: %w", globalID, err)
	}
	e.enumerator.Invalidate(globalID)
	return nil
}

// cascade runs the worklist until no database has a pending delta. Every
// hop re-enumerates the topology from the mapping store, so a resource
// attached to N tenants converges after at most two hops: the origin
// reaches everyone, and every re-broadcast finds empty deltas.
func (e *Engine) cascade(ctx context.Context, def *Definition, globalID string, origin entities.Target, rec *entities.Record) error {
	type workItem struct {
		origin entities.Target
		record *entities.Record
	}

	work := []workItem{{origin: origin, record: rec}}
	visited := map[string]bool{origin.String(): true}
	var errs []error

	for len(work) > 0 {
		item := work[0]
		work = work[1:]
		e.collector.HopProcessed()

		targets, err := e.enumerator.Targets(ctx, globalID, item.origin)
		if err != nil {
			// Partial fan-out is a correctness bug; fail loudly rather than
			// continue with an incomplete target set.
			errs = append(errs, err)
			break
		}

		for _, target := range targets {
			if visited[target.String()] {
				continue
			}
			visited[target.String()] = true

			written, wrote, err := e.applyToTarget(ctx, def, globalID, target, item.record)
			if err != nil {
				e.collector.TargetFailed()
				errs = append(errs, &entities.TargetWriteError{Target: target, GlobalID: globalID, Err: err})
				continue
			}
			if !wrote {
				continue
			}

			e.collector.TargetWritten()
			e.publish(events.ResourceChangedInForeignDatabase, ForeignChangePayload{Record: written, Target: target})

			// The write in the target is itself a dirty save: re-broadcast
			// from there so propagation reaches parties this origin does
			// not know about.
			work = append(work, workItem{origin: target, record: written})
		}
	}

	return errors.Join(errs...)
}

// applyToTarget performs the create-or-update of one target database.
// It returns the record as written and whether anything was written at all;
// an empty synced delta writes nothing.
func (e *Engine) applyToTarget(ctx context.Context, def *Definition, globalID string, target entities.Target, source *entities.Record) (*entities.Record, bool, error) {
	repo, err := e.stores.Records(target)
	if err != nil {
		return nil, false, err
	}

	existing, err := repo.FindByGlobalID(ctx, def.Table, def.GlobalIDColumn, globalID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up %q: %w", globalID, err)
	}

	if existing != nil {
		delta := source.SyncedDelta(existing, def.SyncedAttributes)
		if len(delta) == 0 {
			return nil, false, nil
		}
		if err := repo.Update(ctx, def.Table, def.GlobalIDColumn, globalID, delta); err != nil {
			return nil, false, fmt.Errorf("failed to update %q: %w", globalID, err)
		}
		written := existing.Clone()
		for name, value := range delta {
			written.Set(name, value)
		}
		return written, true, nil
	}

	attrs := BuildAttributes(source, def.CreationFor(target.Role), def.GlobalIDColumn, def.KeyColumns)
	if err := repo.Insert(ctx, def.Table, attrs); err != nil {
		return nil, false, fmt.Errorf("failed to insert %q: %w", globalID, err)
	}

	// A tenant that just received its first copy must be registered
	// centrally so future enumerations include it.
	if target.Role == entities.RoleTenant {
		if err := e.stores.Mappings().Attach(ctx, globalID, target.TenantID); err != nil {
			return nil, false, fmt.Errorf("failed to register mapping for %q: %w", globalID, err)
		}
		e.enumerator.Invalidate(globalID)
	}

	return entities.NewRecord(def.Table, attrs), true, nil
}

func (e *Engine) publish(kind events.Kind, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Kind: kind, Payload: payload})
	e.collector.NotificationPublished()
}

// touchesSynced reports whether the save modified the synced attribute set
// or the global identifier column. nil means "unknown, assume yes".
func touchesSynced(def *Definition, changed []string) bool {
	if changed == nil {
		return true
	}
	for _, name := range changed {
		if name == def.GlobalIDColumn || def.IsSynced(name) {
			return true
		}
	}
	return false
}
