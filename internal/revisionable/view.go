package revisionable

import (
	"context"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/store"
)

// SelectRevision makes the getters read revision n until SelectLatest or
// the next transaction. Not allowed inside a transaction.
func (r *Revisionable) SelectRevision(ctx context.Context, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txn != nil {
		return r.errorf(ErrCodeTransactionActive, "cannot select a revision inside transaction %s", r.txn.id)
	}
	if n == r.current.Revision {
		r.selected = nil
		return nil
	}
	rev, err := r.manager.store.ReadRevision(ctx, r.current.RecordID, n)
	if err != nil {
		return notFound(err, "revision %d of record %d does not exist", n, r.current.RecordID)
	}
	r.selected = &rev
	return nil
}

// SelectLatest makes the getters read the latest revision again.
func (r *Revisionable) SelectLatest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = nil
}

// RevisionExists reports whether revision n exists.
func (r *Revisionable) RevisionExists(ctx context.Context, n int64) (bool, error) {
	_, err := r.manager.store.ReadRevision(ctx, r.ID(), n)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revisions returns every revision in ascending order.
func (r *Revisionable) Revisions(ctx context.Context) ([]ir.RevisionRecord, error) {
	return r.manager.store.ListRevisions(ctx, r.ID())
}

// LatestRevision reads the latest committed revision from the store, which
// may be newer than this instance's.
func (r *Revisionable) LatestRevision(ctx context.Context) (ir.RevisionRecord, error) {
	rev, err := r.manager.store.ReadLatestRevision(ctx, r.ID())
	if err != nil {
		return ir.RevisionRecord{}, notFound(err, "record %d has no revisions", r.ID())
	}
	return rev, nil
}

// Changes returns a JSON merge patch (RFC 7386) that turns revision a into
// revision b. The patched document has the members label, state,
// data_keys and parts. An empty object means no differences.
func (r *Revisionable) Changes(ctx context.Context, a, b int64) ([]byte, error) {
	return RevisionChanges(ctx, r.manager.store, r.ID(), a, b)
}

// RevisionChanges computes Changes for any stored record.
func RevisionChanges(ctx context.Context, st *store.Store, recordID, a, b int64) ([]byte, error) {
	from, err := st.ReadRevision(ctx, recordID, a)
	if err != nil {
		return nil, notFound(err, "revision %d of record %d does not exist", a, recordID)
	}
	to, err := st.ReadRevision(ctx, recordID, b)
	if err != nil {
		return nil, notFound(err, "revision %d of record %d does not exist", b, recordID)
	}

	fromDoc, err := revisionDocument(from)
	if err != nil {
		return nil, err
	}
	toDoc, err := revisionDocument(to)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.CreateMergePatch(fromDoc, toDoc)
	if err != nil {
		return nil, fmt.Errorf("compare revisions %d and %d: %w", a, b, err)
	}
	return patch, nil
}

// ApplyChanges applies a merge patch produced by Changes to a revision
// document.
func ApplyChanges(doc, patch []byte) ([]byte, error) {
	out, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("apply changes: %w", err)
	}
	return out, nil
}

// RevisionDocument returns the canonical JSON document Changes compares.
func RevisionDocument(rev ir.RevisionRecord) ([]byte, error) {
	return revisionDocument(rev)
}

func revisionDocument(rev ir.RevisionRecord) ([]byte, error) {
	doc := ir.IRObject{
		"label":     ir.IRString(rev.Label),
		"state":     ir.IRString(rev.State),
		"data_keys": rev.DataKeys.Clone(),
		"parts":     rev.Parts.Clone(),
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("revision %d document: %w", rev.Revision, err)
	}
	return data, nil
}
