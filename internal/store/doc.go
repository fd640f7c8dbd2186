// Package store provides the in-memory entity store for classroom records.
//
// This package is internal to rollcall and holds the single source of truth
// for classroom attendance state. It is a dumb keyed container:
//
//   - [Store]: Interface defining the narrow operation set
//   - [MemoryStore]: Insertion-ordered, mutex-guarded implementation
//   - [Classroom], [Student]: Storage and wire representation of a record
//
// The store never enforces cross-record invariants such as path uniqueness;
// the gateway validates before it commits. Contents live for the lifetime of
// the process and are never written to disk.
package store
