// Package revisionable implements versioned records with transactional
// saves.
//
// A Revisionable is a record whose every committed change produces a new
// immutable revision. Mutations are only allowed between StartTransaction
// (or StartCurrentUserTransaction) and EndTransaction/RollbackTransaction.
// Ending a transaction that changed nothing writes no revision.
//
// Revision numbers start at 1 and increase by one per committed
// transaction. A transaction remembers the revision it started from; if
// another writer committed in the meantime, EndTransaction fails with
// ErrCodeRevisionConflict and nothing is written.
//
// Lifecycle events are dispatched to listeners in registration order and
// stamped with a logical seq from the Manager's clock:
//
//	before_save        listeners may veto; the transaction is rolled back
//	revision_added     after the revision row is committed
//	transaction_ended  committed, rolled_back or empty
//
// Copier copies a revision of one record into another record of the same
// type, first its data keys and then its parts. Parts are copied by
// registered functions or by Copy<PartName> methods on a handler.
package revisionable
