// Package store provides SQLite-backed persistence for revisionable records.
//
// Tables:
//   - revisionables: one head row per record (type, current revision, label, state)
//   - revisions: immutable revision rows, PRIMARY KEY(record_id, revision)
//   - transactions: audit rows for every finished transaction
//   - revision_events: lifecycle events of committed transactions
//
// # Invariants
//
// Revision numbers per record are dense and strictly increasing. CommitRevision
// only accepts revision = current_revision + 1 and checks the transaction's base
// revision against the head row inside one SQL transaction, so a stale writer
// gets ErrConflict and nothing is written.
//
// Reads are ordered by revision or seq, never by timestamps.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a revisionable cascades to its history
package store
