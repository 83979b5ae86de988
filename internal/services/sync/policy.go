package sync

import "github.com/eelco2k/tenancy/internal/entities"

// CreationPolicy describes how a record is materialized in a database that
// does not yet hold a copy. It covers four shapes:
//
//   - nil policy: full copy of every non-key attribute from the source
//   - Copy only: the named attributes are copied from the source, the rest
//     take the target's defaults
//   - Literals only: the named attributes are set to fixed values, the rest
//     take the target's defaults
//   - both: copied names and literals combined
//
// Whatever the shape, the global identifier is always taken from the source
// to preserve identity linkage.
type CreationPolicy struct {
	// Copy lists attribute names whose values are pulled from the source
	// record.
	Copy []string

	// Literals maps attribute names to fixed values, set as-is instead of
	// being copied from the source.
	Literals map[string]interface{}
}

// BuildAttributes resolves a creation policy against a source record and
// returns the attribute map for the new row. keyColumns are never copied by
// a nil (full-copy) policy; globalIDColumn is set from the source last,
// overriding anything the policy produced.
func BuildAttributes(source *entities.Record, policy *CreationPolicy, globalIDColumn string, keyColumns []string) map[string]interface{} {
	attrs := make(map[string]interface{})

	if policy == nil {
		skip := make(map[string]bool, len(keyColumns))
		for _, col := range keyColumns {
			skip[col] = true
		}
		for name, value := range source.Attrs {
			if skip[name] {
				continue
			}
			attrs[name] = value
		}
	} else {
		for _, name := range policy.Copy {
			if value, ok := source.Attrs[name]; ok {
				attrs[name] = value
			}
		}
		for name, value := range policy.Literals {
			attrs[name] = value
		}
	}

	if id := source.GlobalID(globalIDColumn); id != "" {
		attrs[globalIDColumn] = id
	}

	return attrs
}
