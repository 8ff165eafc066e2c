package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/appframe/internal/ir"
)

const revisionColumns = `r.record_id, h.type_name, r.revision, r.label, r.state, r.author, r.comments,
	r.data_keys, r.parts, r.content_hash, r.transaction_id, r.seq, r.created_at, r.schema_version`

// ReadRevisionable returns the head row of a record.
// Returns ErrNotFound if the record does not exist.
func (s *Store) ReadRevisionable(ctx context.Context, id int64) (ir.RevisionableRecord, error) {
	var rec ir.RevisionableRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type_name, current_revision, label, state, created_at
		FROM revisionables
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.TypeName, &rec.CurrentRevision, &rec.Label, &rec.State, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RevisionableRecord{}, fmt.Errorf("revisionable %d: %w: %w", id, ErrNotFound, err)
	}
	if err != nil {
		return ir.RevisionableRecord{}, fmt.Errorf("read revisionable: %w", err)
	}
	return rec, nil
}

// ReadRevision returns one revision of a record.
// Returns ErrNotFound if the revision does not exist.
func (s *Store) ReadRevision(ctx context.Context, recordID, revision int64) (ir.RevisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revisions r
		JOIN revisionables h ON h.id = r.record_id
		WHERE r.record_id = ? AND r.revision = ?
	`, recordID, revision)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RevisionRecord{}, fmt.Errorf("revision %d of record %d: %w: %w", revision, recordID, ErrNotFound, err)
	}
	return rev, err
}

// ReadLatestRevision returns the current revision of a record.
// Returns ErrNotFound if the record has no committed revision yet.
func (s *Store) ReadLatestRevision(ctx context.Context, recordID int64) (ir.RevisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revisions r
		JOIN revisionables h ON h.id = r.record_id AND h.current_revision = r.revision
		WHERE r.record_id = ?
	`, recordID)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RevisionRecord{}, fmt.Errorf("latest revision of record %d: %w: %w", recordID, ErrNotFound, err)
	}
	return rev, err
}

// ListRevisions returns all revisions of a record ordered by revision number.
// Returns an empty slice (not nil) when the record has no revisions.
func (s *Store) ListRevisions(ctx context.Context, recordID int64) ([]ir.RevisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revisions r
		JOIN revisionables h ON h.id = r.record_id
		WHERE r.record_id = ?
		ORDER BY r.revision ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []ir.RevisionRecord{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// ReadTransactions returns the transaction audit rows of a record ordered by seq.
func (s *Store) ReadTransactions(ctx context.Context, recordID int64) ([]ir.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, base_revision, revision, author, comments, status, seq
		FROM transactions
		WHERE record_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txns := []ir.TransactionRecord{}
	for rows.Next() {
		var txn ir.TransactionRecord
		if err := rows.Scan(
			&txn.ID, &txn.RecordID, &txn.BaseRevision, &txn.Revision,
			&txn.Author, &txn.Comments, &txn.Status, &txn.Seq,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// ReadEvents returns the persisted lifecycle events of a record ordered by seq.
func (s *Store) ReadEvents(ctx context.Context, recordID int64) ([]ir.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, transaction_id, record_id, revision, event
		FROM revision_events
		WHERE record_id = ?
		ORDER BY seq ASC, transaction_id COLLATE BINARY ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.EventRecord{}
	for rows.Next() {
		var ev ir.EventRecord
		if err := rows.Scan(&ev.Seq, &ev.TransactionID, &ev.RecordID, &ev.Revision, &ev.Event); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// MaxSeq returns the highest logical seq written so far, 0 for an empty
// database. Used to resume the logical clock after a restart.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(m) FROM (
			SELECT MAX(seq) AS m FROM transactions
			UNION ALL
			SELECT MAX(seq) AS m FROM revision_events
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (ir.RevisionRecord, error) {
	var rev ir.RevisionRecord
	var dataKeysJSON, partsJSON string

	if err := row.Scan(
		&rev.RecordID, &rev.TypeName, &rev.Revision, &rev.Label, &rev.State,
		&rev.Author, &rev.Comments, &dataKeysJSON, &partsJSON, &rev.ContentHash,
		&rev.TransactionID, &rev.Seq, &rev.CreatedAt, &rev.SchemaVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rev, err
		}
		return rev, fmt.Errorf("scan revision: %w", err)
	}

	var err error
	if rev.DataKeys, err = unmarshalObject(dataKeysJSON); err != nil {
		return rev, fmt.Errorf("scan revision: data keys: %w", err)
	}
	if rev.Parts, err = unmarshalObject(partsJSON); err != nil {
		return rev, fmt.Errorf("scan revision: parts: %w", err)
	}
	return rev, nil
}
