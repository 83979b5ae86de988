package entities

import (
	"fmt"
	"reflect"
)

// Record represents one physical copy of a synced resource: a single row in
// one database, viewed as a table name plus a column/value map.
// The same logical resource is represented by one Record per database that
// holds a copy; copies agree on the global identifier column and on every
// synced attribute once propagation has converged.
type Record struct {
	Table string
	Attrs map[string]interface{}
}

// NewRecord creates a record for the given table. The attribute map is
// copied so later mutation of attrs does not alias the record.
func NewRecord(table string, attrs map[string]interface{}) *Record {
	r := &Record{
		Table: table,
		Attrs: make(map[string]interface{}, len(attrs)),
	}
	for k, v := range attrs {
		r.Attrs[k] = v
	}
	return r
}

// Get returns the value of the named attribute, or nil if absent.
func (r *Record) Get(name string) interface{} {
	return r.Attrs[name]
}

// Set assigns an attribute value, allocating the map if needed.
func (r *Record) Set(name string, value interface{}) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]interface{})
	}
	r.Attrs[name] = value
}

// GlobalID returns the record's global identifier read from the given
// column, or the empty string when the column is absent or not a string.
func (r *Record) GlobalID(column string) string {
	if id, ok := r.Attrs[column].(string); ok {
		return id
	}
	return ""
}

// Clone returns a deep-enough copy of the record: the attribute map is
// copied, attribute values are shared.
func (r *Record) Clone() *Record {
	return NewRecord(r.Table, r.Attrs)
}

// Validate checks if the record is usable for propagation
func (r *Record) Validate() error {
	if r.Table == "" {
		return fmt.Errorf("record table is required")
	}
	if len(r.Attrs) == 0 {
		return fmt.Errorf("record has no attributes")
	}
	return nil
}

// SyncedDelta computes the subset of the synced attributes whose value on r
// differs from the value held by existing. An empty result means the copy
// already matches and propagation has nothing to write; this emptiness is
// what terminates multi-hop cascades.
func (r *Record) SyncedDelta(existing *Record, synced []string) map[string]interface{} {
	delta := make(map[string]interface{})
	for _, name := range synced {
		value, ok := r.Attrs[name]
		if !ok {
			continue
		}
		if existing == nil || !valueEqual(value, existing.Attrs[name]) {
			delta[name] = value
		}
	}
	return delta
}

// valueEqual compares attribute values across databases. Byte slices are
// compared as strings because database/sql scans text columns as []byte.
func valueEqual(a, b interface{}) bool {
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	return reflect.DeepEqual(a, b)
}
