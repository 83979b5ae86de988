package sync

import (
	"testing"

	"github.com/eelco2k/tenancy/internal/entities"
)

func TestResolver_KeepsExistingIdentity(t *testing.T) {
	r := NewResolver(func() string { return "fresh" })
	rec := entities.NewRecord("users", map[string]interface{}{"global_id": "acme"})

	if got := r.EnsureIdentity(rec, "global_id"); got != "acme" {
		t.Errorf("EnsureIdentity = %q, want acme", got)
	}
}

func TestResolver_GeneratesWhenAbsent(t *testing.T) {
	r := NewResolver(func() string { return "fresh" })
	rec := entities.NewRecord("users", map[string]interface{}{"name": "John"})

	if got := r.EnsureIdentity(rec, "global_id"); got != "fresh" {
		t.Errorf("EnsureIdentity = %q, want fresh", got)
	}
	if rec.GlobalID("global_id") != "fresh" {
		t.Error("expected the generated id to be set on the record")
	}
}

func TestResolver_DefaultGeneratorProducesULIDs(t *testing.T) {
	r := NewResolver(nil)
	rec := entities.NewRecord("users", map[string]interface{}{"name": "John"})

	id := r.EnsureIdentity(rec, "global_id")
	if len(id) != 26 {
		t.Errorf("expected 26-character ULID, got %q (len %d)", id, len(id))
	}

	other := entities.NewRecord("users", map[string]interface{}{"name": "Jane"})
	if r.EnsureIdentity(other, "global_id") == id {
		t.Error("expected distinct identifiers for distinct records")
	}
}

func TestSetDefaultGenerator(t *testing.T) {
	SetDefaultGenerator(func() string { return "overridden" })
	defer SetDefaultGenerator(nil)

	r := NewResolver(nil)
	rec := entities.NewRecord("users", map[string]interface{}{"name": "John"})
	if got := r.EnsureIdentity(rec, "global_id"); got != "overridden" {
		t.Errorf("EnsureIdentity = %q, want overridden", got)
	}

	SetDefaultGenerator(nil)
	rec2 := entities.NewRecord("users", map[string]interface{}{"name": "Jane"})
	r2 := NewResolver(nil)
	if got := r2.EnsureIdentity(rec2, "global_id"); len(got) != 26 {
		t.Errorf("expected ULID after reset, got %q", got)
	}
}
