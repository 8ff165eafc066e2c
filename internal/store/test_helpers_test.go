package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/appframe/internal/ir"
)

const testCreatedAt = "2026-01-02T03:04:05Z"

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRevisionable inserts a head row and returns its ID.
func createTestRevisionable(t *testing.T, s *Store, typeName string) int64 {
	t.Helper()
	id, err := s.CreateRevisionable(context.Background(), typeName, "", "draft", testCreatedAt)
	if err != nil {
		t.Fatalf("CreateRevisionable() failed: %v", err)
	}
	return id
}

// createTestRevision builds a revision following base with minimal fields.
func createTestRevision(recordID, base int64, title string, seq int64) (ir.RevisionRecord, ir.TransactionRecord) {
	keys := ir.IRObject{"title": ir.IRString(title)}
	txnID := fmt.Sprintf("txn-%d-%d", recordID, base+1)
	rev := ir.RevisionRecord{
		RecordID:      recordID,
		TypeName:      "article",
		Revision:      base + 1,
		Label:         title,
		State:         "draft",
		Author:        "alice",
		Comments:      "edit",
		DataKeys:      keys,
		Parts:         ir.IRObject{"tags": ir.IRArray{ir.IRString("go")}},
		ContentHash:   ir.MustRevisionHash("article", recordID, title, "draft", keys, nil),
		TransactionID: txnID,
		Seq:           seq,
		CreatedAt:     testCreatedAt,
	}
	txn := ir.TransactionRecord{
		ID:           txnID,
		RecordID:     recordID,
		BaseRevision: base,
		Author:       "alice",
		Comments:     "edit",
		Seq:          seq,
	}
	return rev, txn
}
