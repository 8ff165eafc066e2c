package revisionable

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/store"
)

// StartTransaction opens a transaction by author based on the latest
// revision known to this instance. Transactions do not nest.
func (r *Revisionable) StartTransaction(ctx context.Context, author, comments string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txn != nil {
		return r.errorf(ErrCodeTransactionActive, "transaction %s is already open", r.txn.id)
	}

	r.selected = nil
	r.txn = &transaction{
		id:       r.manager.tokens.Generate(),
		author:   author,
		comments: comments,
		base:     r.current,
		working:  cloneRevision(r.current),
	}

	r.manager.logger.Debug("transaction started",
		zap.String("transaction_id", r.txn.id),
		zap.String("type", r.rtype.Name),
		zap.Int64("record_id", r.current.RecordID),
		zap.Int64("base_revision", r.current.Revision),
		zap.String("author", author))
	return nil
}

// StartCurrentUserTransaction opens a transaction authored by the user in
// ctx (see WithUser).
func (r *Revisionable) StartCurrentUserTransaction(ctx context.Context) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return r.lockedErrorf(ErrCodeNoCurrentUser, "no current user in context")
	}
	return r.StartTransaction(ctx, user, "")
}

// EndTransaction finishes the open transaction. When something changed it
// dispatches before_save, writes the next revision and dispatches
// revision_added. It always dispatches transaction_ended. It returns
// whether a revision was written.
//
// A before_save veto rolls the transaction back and returns
// ErrCodeSaveVetoed. A concurrent commit by another writer returns
// ErrCodeRevisionConflict; nothing is written and the instance keeps its
// previous revision until Reload.
func (r *Revisionable) EndTransaction(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireTransaction("end transaction"); err != nil {
		return false, err
	}
	txn := r.txn
	r.txn = nil

	m := r.manager
	changes := txn.changes()
	record := ir.TransactionRecord{
		ID:           txn.id,
		RecordID:     txn.base.RecordID,
		BaseRevision: txn.base.Revision,
		Author:       txn.author,
		Comments:     txn.comments,
	}
	log := m.logger.With(
		zap.String("transaction_id", txn.id),
		zap.String("type", r.rtype.Name),
		zap.Int64("record_id", record.RecordID))

	if len(changes) == 0 && !txn.forced {
		record.Status = ir.TransactionEmpty
		record.Seq = m.clock.Next()
		if err := m.store.LogTransaction(ctx, record); err != nil {
			return false, fmt.Errorf("end transaction: %w", err)
		}
		r.notify(ctx, log, r.endedEvent(record, changes))
		log.Debug("transaction ended without changes")
		return false, nil
	}

	pending := txn.working
	pending.Revision = txn.base.Revision + 1
	pending.Author = txn.author
	pending.Comments = txn.comments
	pending.TransactionID = txn.id
	pending.CreatedAt = m.timestamp()
	pending.SchemaVersion = ir.SchemaVersion
	hash, err := ir.RevisionHash(pending.TypeName, pending.RecordID, pending.Label, pending.State, pending.DataKeys, pending.Parts)
	if err != nil {
		return false, fmt.Errorf("end transaction: %w", err)
	}
	pending.ContentHash = hash

	beforeSeq := m.clock.Next()
	if err := r.dispatch(ctx, Event{
		Type:          EventBeforeSave,
		Seq:           beforeSeq,
		TransactionID: txn.id,
		RecordID:      record.RecordID,
		TypeName:      r.rtype.Name,
		Changes:       changes,
		Revision:      cloneRevision(pending),
	}); err != nil {
		if rbErr := r.rollback(ctx, log, record, changes); rbErr != nil {
			log.Warn("rollback after veto failed", zap.Error(rbErr))
		}
		e := r.errorf(ErrCodeSaveVetoed, "save vetoed by before_save listener")
		e.Err = err
		return false, e
	}

	pending.Seq = m.clock.Next()
	record.Seq = m.clock.Next()
	events := []ir.EventRecord{
		{Seq: beforeSeq, Event: string(EventBeforeSave)},
		{Seq: pending.Seq, Event: string(EventRevisionAdded)},
		{Seq: record.Seq, Event: string(EventTransactionEnded)},
	}

	if err := m.store.CommitRevision(ctx, pending, record, events); err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Warn("revision conflict", zap.Int64("base_revision", record.BaseRevision))
			record.Status = ir.TransactionRolledBack
			r.notify(ctx, log, r.endedEvent(record, changes))
			e := r.errorf(ErrCodeRevisionConflict, "record changed since revision %d", record.BaseRevision)
			e.Err = err
			return false, e
		}
		return false, fmt.Errorf("end transaction: %w", err)
	}

	r.current = pending
	record.Status = ir.TransactionCommitted
	record.Revision = pending.Revision

	r.notify(ctx, log, Event{
		Type:          EventRevisionAdded,
		Seq:           pending.Seq,
		TransactionID: txn.id,
		RecordID:      record.RecordID,
		TypeName:      r.rtype.Name,
		Changes:       changes,
		Revision:      cloneRevision(pending),
	})
	r.notify(ctx, log, r.endedEvent(record, changes))

	log.Info("revision committed",
		zap.Int64("revision", pending.Revision),
		zap.Strings("changes", changes))
	return true, nil
}

// RollbackTransaction discards the open transaction.
func (r *Revisionable) RollbackTransaction(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireTransaction("rollback transaction"); err != nil {
		return err
	}
	txn := r.txn
	r.txn = nil

	record := ir.TransactionRecord{
		ID:           txn.id,
		RecordID:     txn.base.RecordID,
		BaseRevision: txn.base.Revision,
		Author:       txn.author,
		Comments:     txn.comments,
	}
	log := r.manager.logger.With(zap.String("transaction_id", txn.id), zap.Int64("record_id", record.RecordID))
	return r.rollback(ctx, log, record, txn.changes())
}

// rollback logs a rolled back transaction and dispatches its
// transaction_ended event. Caller holds mu and has cleared r.txn.
func (r *Revisionable) rollback(ctx context.Context, log *zap.Logger, record ir.TransactionRecord, changes []string) error {
	record.Status = ir.TransactionRolledBack
	record.Seq = r.manager.clock.Next()
	if err := r.manager.store.LogTransaction(ctx, record); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	r.notify(ctx, log, r.endedEvent(record, changes))
	log.Debug("transaction rolled back")
	return nil
}

func (r *Revisionable) endedEvent(record ir.TransactionRecord, changes []string) Event {
	return Event{
		Type:          EventTransactionEnded,
		Seq:           record.Seq,
		TransactionID: record.ID,
		RecordID:      record.RecordID,
		TypeName:      r.rtype.Name,
		Status:        record.Status,
		Changes:       changes,
		Revision:      cloneRevision(r.current),
	}
}

// notify dispatches an event whose outcome cannot be changed anymore.
// Listener errors are logged.
func (r *Revisionable) notify(ctx context.Context, log *zap.Logger, ev Event) {
	if err := r.dispatch(ctx, ev); err != nil {
		log.Warn("listener failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

// Reload re-reads the latest revision from the store, for example after a
// conflict. Not allowed inside a transaction.
func (r *Revisionable) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txn != nil {
		return r.errorf(ErrCodeTransactionActive, "cannot reload inside transaction %s", r.txn.id)
	}
	latest, err := r.manager.store.ReadLatestRevision(ctx, r.current.RecordID)
	if err != nil {
		return notFound(err, "record %d has no revisions", r.current.RecordID)
	}
	r.current = latest
	r.selected = nil
	return nil
}
