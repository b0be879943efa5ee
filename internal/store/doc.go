// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the scheduler's core logic. Two implementations exist: PostgreSQL
// (internal/platform/postgres) and an in-process store
// (internal/platform/memory) used by tests and local runs.
//
// All mutations run inside a Transactor unit of work. Within a unit the
// GetForUpdate methods hold the row for the rest of the unit, which is how
// per-key read-modify-write is serialized.
package store
