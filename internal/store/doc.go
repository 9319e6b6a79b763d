// Package store provides durable storage for blood pressure measurements.
//
// # Architecture
//
// MeasurementStore is the single interface the rest of pulselog depends on.
// Two implementations exist:
//
//   - SQLiteStore: production storage on modernc.org/sqlite
//   - MockStore: in-memory storage for tests, with fault injection
//
// # Data Model
//
// One table holds every record:
//
//	measurements(id, user_id, systolic, diastolic, pulse, recorded_at)
//
// id is assigned by SQLite (AUTOINCREMENT) and recorded_at by the store at
// insert time. Records are append-only: there is no update or delete. Every
// query is scoped to a single user_id.
//
// Ordering is recorded_at descending with id as the tie breaker, so two
// readings taken within the same second still come back newest first.
//
// # Concurrency
//
// Appends are serialized by a writer mutex and committed in one statement,
// so a record is either fully written or absent. Reads run concurrently
// under WAL mode and always see every completed append.
//
// # Errors
//
// Every persistence fault is returned as *StorageError so callers can
// distinguish it with errors.As.
//
// # Migrations
//
// Databases created by the earlier bot (columns sys, dia, timestamp) are
// upgraded in place on open; existing rows are kept.
package store
