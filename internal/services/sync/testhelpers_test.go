package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
)

// memoryDB is one in-memory database: table -> global id -> attribute map.
type memoryDB struct {
	rows map[string]map[string]map[string]interface{}
}

func newMemoryDB() *memoryDB {
	return &memoryDB{rows: make(map[string]map[string]map[string]interface{})}
}

func (db *memoryDB) table(name string) map[string]map[string]interface{} {
	t, ok := db.rows[name]
	if !ok {
		t = make(map[string]map[string]interface{})
		db.rows[name] = t
	}
	return t
}

// put seeds a row directly, bypassing the repository.
func (db *memoryDB) put(table string, globalIDColumn string, attrs map[string]interface{}) {
	id, _ := attrs[globalIDColumn].(string)
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	db.table(table)[id] = copied
}

func (db *memoryDB) get(table string, globalID string) map[string]interface{} {
	return db.table(table)[globalID]
}

// memoryRecords implements repositories.RecordRepository over a memoryDB.
type memoryRecords struct {
	db *memoryDB

	// fault injection
	failInsert error
	failUpdate error

	inserts int
	updates int
}

func (r *memoryRecords) FindByGlobalID(ctx context.Context, table string, globalIDColumn string, globalID string) (*entities.Record, error) {
	attrs, ok := r.db.table(table)[globalID]
	if !ok {
		return nil, nil
	}
	return entities.NewRecord(table, attrs), nil
}

func (r *memoryRecords) Insert(ctx context.Context, table string, attrs map[string]interface{}) error {
	if r.failInsert != nil {
		return r.failInsert
	}
	var id string
	for k, v := range attrs {
		if s, ok := v.(string); ok && k == "global_id" {
			id = s
		}
	}
	if _, exists := r.db.table(table)[id]; exists {
		return entities.ErrIdentityConflict
	}
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	r.db.table(table)[id] = copied
	r.inserts++
	return nil
}

func (r *memoryRecords) Update(ctx context.Context, table string, globalIDColumn string, globalID string, attrs map[string]interface{}) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	row, ok := r.db.table(table)[globalID]
	if !ok {
		return fmt.Errorf("row %q not found", globalID)
	}
	for k, v := range attrs {
		row[k] = v
	}
	r.updates++
	return nil
}

// memoryMappings implements repositories.MappingRepository, preserving
// attach order.
type memoryMappings struct {
	tenants    map[string][]string
	attachedAt map[string]time.Time

	failTenantsFor error
}

func newMemoryMappings() *memoryMappings {
	return &memoryMappings{
		tenants:    make(map[string][]string),
		attachedAt: make(map[string]time.Time),
	}
}

func (m *memoryMappings) Attach(ctx context.Context, globalID string, tenantID string) error {
	for _, t := range m.tenants[globalID] {
		if t == tenantID {
			return nil
		}
	}
	m.tenants[globalID] = append(m.tenants[globalID], tenantID)
	m.attachedAt[globalID+"/"+tenantID] = time.Now()
	return nil
}

func (m *memoryMappings) Detach(ctx context.Context, globalID string, tenantID string) error {
	list := m.tenants[globalID]
	for i, t := range list {
		if t == tenantID {
			m.tenants[globalID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryMappings) TenantsFor(ctx context.Context, globalID string) ([]string, error) {
	if m.failTenantsFor != nil {
		return nil, m.failTenantsFor
	}
	return append([]string(nil), m.tenants[globalID]...), nil
}

func (m *memoryMappings) Entries(ctx context.Context, globalID string) ([]*entities.Mapping, error) {
	out := make([]*entities.Mapping, 0, len(m.tenants[globalID]))
	for _, t := range m.tenants[globalID] {
		out = append(out, &entities.Mapping{
			GlobalID:  globalID,
			TenantID:  t,
			CreatedAt: m.attachedAt[globalID+"/"+t],
		})
	}
	return out, nil
}

func (m *memoryMappings) Exists(ctx context.Context, globalID string, tenantID string) (bool, error) {
	for _, t := range m.tenants[globalID] {
		if t == tenantID {
			return true, nil
		}
	}
	return false, nil
}

// memoryTenants implements repositories.TenantRepository.
type memoryTenants struct {
	byID map[string]*entities.Tenant
}

func newMemoryTenants(ids ...string) *memoryTenants {
	m := &memoryTenants{byID: make(map[string]*entities.Tenant)}
	for _, id := range ids {
		m.byID[id] = &entities.Tenant{ID: id, Name: id}
	}
	return m
}

func (m *memoryTenants) Create(ctx context.Context, tenant *entities.Tenant) error {
	m.byID[tenant.ID] = tenant
	return nil
}

func (m *memoryTenants) Get(ctx context.Context, id string) (*entities.Tenant, error) {
	return m.byID[id], nil
}

func (m *memoryTenants) List(ctx context.Context) ([]*entities.Tenant, error) {
	out := make([]*entities.Tenant, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryTenants) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

// memoryStores implements StoreProvider over one central and any number of
// lazily-created tenant databases.
type memoryStores struct {
	central     *memoryDB
	centralRepo *memoryRecords
	tenantDBs   map[string]*memoryDB
	tenantRepos map[string]*memoryRecords
	mappings    *memoryMappings

	centralDown bool
}

func newMemoryStores() *memoryStores {
	central := newMemoryDB()
	return &memoryStores{
		central:     central,
		centralRepo: &memoryRecords{db: central},
		tenantDBs:   make(map[string]*memoryDB),
		tenantRepos: make(map[string]*memoryRecords),
		mappings:    newMemoryMappings(),
	}
}

func (s *memoryStores) tenant(tenantID string) *memoryDB {
	db, ok := s.tenantDBs[tenantID]
	if !ok {
		db = newMemoryDB()
		s.tenantDBs[tenantID] = db
		s.tenantRepos[tenantID] = &memoryRecords{db: db}
	}
	return db
}

func (s *memoryStores) tenantRepo(tenantID string) *memoryRecords {
	s.tenant(tenantID)
	return s.tenantRepos[tenantID]
}

func (s *memoryStores) Records(target entities.Target) (repositories.RecordRepository, error) {
	if target.IsCentral() {
		if s.centralDown {
			return nil, fmt.Errorf("central database unreachable")
		}
		return s.centralRepo, nil
	}
	return s.tenantRepo(target.TenantID), nil
}

func (s *memoryStores) Mappings() repositories.MappingRepository {
	return s.mappings
}

// userDefinition is the definition most tests use: name and email synced,
// everything else private.
func userDefinition() *Definition {
	return &Definition{
		Table:            "users",
		SyncedAttributes: []string{"name", "email"},
	}
}

// newTestEngine wires an engine over memory stores with no cache, no bus
// and no metrics unless the caller swaps them in.
func newTestEngine(def *Definition, stores *memoryStores) (*Engine, *Registry, *Enumerator) {
	registry := NewRegistry()
	if def != nil {
		if err := registry.Register(def); err != nil {
			panic(err)
		}
	}
	enumerator := NewEnumerator(stores.mappings, nil, 0)
	engine := NewEngine(registry, stores, enumerator, nil, nil, nil)
	return engine, registry, enumerator
}
