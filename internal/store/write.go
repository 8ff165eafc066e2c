package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/appframe/internal/ir"
)

// CreateRevisionable inserts a new head row with no revisions yet and
// returns its ID. The first committed transaction creates revision 1.
func (s *Store) CreateRevisionable(ctx context.Context, typeName, label, state, createdAt string) (int64, error) {
	if typeName == "" {
		return 0, fmt.Errorf("create revisionable: type name is required")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO revisionables (type_name, current_revision, label, state, created_at)
		VALUES (?, 0, ?, ?, ?)
	`, typeName, label, state, createdAt)
	if err != nil {
		return 0, fmt.Errorf("create revisionable: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create revisionable: last insert id: %w", err)
	}
	return id, nil
}

// CommitRevision atomically writes a new revision, its transaction audit row
// and its lifecycle events, and advances the head row.
//
// rev.Revision must be txn.BaseRevision+1 and txn.BaseRevision must still be
// the record's current revision; otherwise ErrConflict is returned and
// nothing is written.
func (s *Store) CommitRevision(ctx context.Context, rev ir.RevisionRecord, txn ir.TransactionRecord, events []ir.EventRecord) error {
	if rev.Revision != txn.BaseRevision+1 {
		return fmt.Errorf("commit revision: revision %d does not follow base %d: %w", rev.Revision, txn.BaseRevision, ErrConflict)
	}

	dataKeysJSON, err := marshalObject(rev.DataKeys)
	if err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}
	partsJSON, err := marshalObject(rev.Parts)
	if err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit revision: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	var typeName string
	err = tx.QueryRowContext(ctx, `
		SELECT current_revision, type_name FROM revisionables WHERE id = ?
	`, rev.RecordID).Scan(&current, &typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("commit revision: revisionable %d: %w", rev.RecordID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("commit revision: read head: %w", err)
	}
	if typeName != rev.TypeName {
		return fmt.Errorf("commit revision: revisionable %d is a %q, not a %q", rev.RecordID, typeName, rev.TypeName)
	}
	if current != txn.BaseRevision {
		return fmt.Errorf("commit revision: record %d is at revision %d, transaction based on %d: %w",
			rev.RecordID, current, txn.BaseRevision, ErrConflict)
	}

	txn.Revision = rev.Revision
	txn.Status = ir.TransactionCommitted
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions
		(record_id, revision, label, state, author, comments, data_keys, parts,
		 content_hash, transaction_id, seq, created_at, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rev.RecordID,
		rev.Revision,
		rev.Label,
		rev.State,
		rev.Author,
		rev.Comments,
		dataKeysJSON,
		partsJSON,
		rev.ContentHash,
		txn.ID,
		rev.Seq,
		rev.CreatedAt,
		ir.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("commit revision: insert revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE revisionables SET current_revision = ?, label = ?, state = ?
		WHERE id = ?
	`, rev.Revision, rev.Label, rev.State, rev.RecordID)
	if err != nil {
		return fmt.Errorf("commit revision: update head: %w", err)
	}

	for _, ev := range events {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO revision_events (transaction_id, seq, record_id, revision, event)
			VALUES (?, ?, ?, ?, ?)
		`, txn.ID, ev.Seq, rev.RecordID, rev.Revision, ev.Event)
		if err != nil {
			return fmt.Errorf("commit revision: insert event %q: %w", ev.Event, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revision: commit: %w", err)
	}
	return nil
}

// LogTransaction records a transaction that did not produce a revision
// (rolled back or ended without changes).
func (s *Store) LogTransaction(ctx context.Context, txn ir.TransactionRecord) error {
	if txn.Status == ir.TransactionCommitted {
		return fmt.Errorf("log transaction: committed transactions are written by CommitRevision")
	}
	txn.Revision = 0
	if err := insertTransaction(ctx, s.db, txn); err != nil {
		return fmt.Errorf("log transaction: %w", err)
	}
	return nil
}

// DeleteRevisionable removes a record and, via cascades, its history.
func (s *Store) DeleteRevisionable(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM revisionables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete revisionable: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete revisionable: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete revisionable %d: %w", id, ErrNotFound)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, txn ir.TransactionRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, record_id, base_revision, revision, author, comments, status, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.RecordID,
		txn.BaseRevision,
		txn.Revision,
		txn.Author,
		txn.Comments,
		txn.Status,
		txn.Seq,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", txn.ID, err)
	}
	return nil
}
