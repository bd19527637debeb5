// Package caliper contains the learning-analytics entity and event model used by
// the fixture generator.
//
// Every entity kind is an explicit value struct with a fixed field set. Values
// are built once by the builder and never mutated afterwards; operations that
// "change" an entity, such as completing an attempt, return a modified copy:
//
//	done, err := attempt.Complete("2015-09-15T11:05:00.000000Z")
//	// attempt.EndedAtTime == ""          (unchanged)
//	// done.Duration       == "PT50M00S"
//
// Field names follow the Caliper JSON-LD vocabulary (@id, @type, dateCreated ...)
// so encoded events can be compared with published Caliper fixtures. The same
// names are used for YAML and CBOR output.
//
// Entities that appear in polymorphic event positions (actor, object, generated,
// target, navigatedFrom) satisfy the Entity interface.
package caliper
