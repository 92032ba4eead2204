// Package record defines the library's row abstraction: a name-indexed
// bag of field values produced by the result subscriber (spec 4.3) and the
// factory used to construct empty instances before field binding fills
// them in.
package record

import "github.com/seuros/reactive-sql-bridge/src/binding"

// Record is one mapped row. It is intentionally a plain map rather than a
// generated struct: the type binding registry that would let callers map
// into arbitrary Go structs is a Non-goal of this module (SPEC_FULL.md
// §1); Record is the smallest shape the core needs to demonstrate the
// mapping contract end to end.
type Record map[string]any

// Factory constructs an empty Record for a given RecordType and is invoked
// once per row by the result subscriber.
type Factory func(rt binding.RecordType) Record

// NewRecord is the default Factory: it preallocates space for exactly the
// fields declared in rt.
func NewRecord(rt binding.RecordType) Record {
	return make(Record, len(rt.Fields))
}
