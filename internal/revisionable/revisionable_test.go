package revisionable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func TestCreate_CommitsFirstRevision(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "Hello")

	assert.Greater(t, r.ID(), int64(0))
	assert.Equal(t, int64(1), r.Revision())
	assert.Equal(t, "Hello", r.Label())
	assert.Equal(t, "draft", r.State())
	assert.Equal(t, ir.IRString(""), r.GetDataKey("title"))
	assert.Equal(t, ir.IRNull{}, r.GetDataKey("body"))
	assert.Equal(t, ir.IRInt(0), r.GetDataKey("views"))
	assert.Equal(t, ir.IRNull{}, r.GetPart("tags"))
	assert.False(t, r.InTransaction())

	latest, err := r.LatestRevision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", latest.Author)
	assert.Equal(t, "created", latest.Comments)
	assert.Equal(t, "txn-0001", latest.TransactionID)
	assert.Equal(t, "2026-01-01T00:00:01Z", latest.CreatedAt)
	assert.NotEmpty(t, latest.ContentHash)
}

func TestCreate_UnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Create(context.Background(), "nope", "", "alice")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeUnknownType))
}

func TestRevisionsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")

	for i := 1; i <= 3; i++ {
		assert.True(t, edit(t, r, map[string]ir.IRValue{"views": ir.IRInt(int64(i))}))
	}

	revs, err := r.Revisions(context.Background())
	require.NoError(t, err)
	require.Len(t, revs, 4)
	for i, rev := range revs {
		assert.Equal(t, int64(i+1), rev.Revision)
	}
	assert.Equal(t, ir.IRInt(3), revs[3].DataKeys["views"])
	assert.Equal(t, int64(4), r.Revision())
}

func TestEndTransaction_NoChangesWritesNoRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	changed, err := r.SetDataKey("title", ir.IRString(""))
	require.NoError(t, err)
	assert.False(t, changed, "same value is not a change")
	saved, err := r.EndTransaction(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, int64(1), r.Revision())

	// Setting a value and back again is no change either.
	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	_, err = r.SetDataKey("title", ir.IRString("tmp"))
	require.NoError(t, err)
	_, err = r.SetDataKey("title", ir.IRString(""))
	require.NoError(t, err)
	assert.Empty(t, r.PendingChanges())
	saved, err = r.EndTransaction(ctx)
	require.NoError(t, err)
	assert.False(t, saved)

	txns, err := f.store.ReadTransactions(ctx, r.ID())
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, ir.TransactionCommitted, txns[0].Status)
	assert.Equal(t, ir.TransactionEmpty, txns[1].Status)
	assert.Equal(t, ir.TransactionEmpty, txns[2].Status)
}

func TestMutationRequiresTransaction(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")

	_, err := r.SetDataKey("title", ir.IRString("x"))
	assert.True(t, HasCode(err, ErrCodeNoTransaction))
	_, err = r.SetPart("tags", ir.IRArray{})
	assert.True(t, HasCode(err, ErrCodeNoTransaction))
	_, err = r.SetLabel("x")
	assert.True(t, HasCode(err, ErrCodeNoTransaction))
	_, err = r.SetState("published")
	assert.True(t, HasCode(err, ErrCodeNoTransaction))
	_, err = r.EndTransaction(context.Background())
	assert.True(t, HasCode(err, ErrCodeNoTransaction))
	assert.True(t, HasCode(r.RollbackTransaction(context.Background()), ErrCodeNoTransaction))
}

func TestTransactionsDoNotNest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	err := r.StartTransaction(ctx, "bob", "")
	assert.True(t, HasCode(err, ErrCodeTransactionActive))
	require.NoError(t, r.RollbackTransaction(ctx))
}

func TestSetters_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")
	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	defer r.RollbackTransaction(ctx)

	_, err := r.SetDataKey("missing", ir.IRString("x"))
	assert.Equal(t, ErrCodeUnknownDataKey, CodeOf(err))

	_, err = r.SetDataKey("views", ir.IRString("many"))
	assert.Equal(t, ErrCodeInvalidValue, CodeOf(err))

	_, err = r.SetPart("comments", ir.IRArray{})
	assert.Equal(t, ErrCodeUnknownPart, CodeOf(err))

	_, err = r.SetState("archived")
	assert.Equal(t, ErrCodeInvalidState, CodeOf(err))

	changed, err := r.SetDataKey("body", nil)
	require.NoError(t, err)
	assert.False(t, changed, "nil clears to null, which it already is")

	changed, err = r.SetState("published")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestRollbackDiscardsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	_, err := r.SetLabel("B")
	require.NoError(t, err)
	assert.Equal(t, "B", r.Label(), "getters read the working copy")
	require.NoError(t, r.RollbackTransaction(ctx))

	assert.Equal(t, "A", r.Label())
	assert.Equal(t, int64(1), r.Revision())

	txns, err := f.store.ReadTransactions(ctx, r.ID())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, ir.TransactionRolledBack, txns[1].Status)
	assert.Equal(t, int64(0), txns[1].Revision)
}

func TestStaleTransactionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "article", "A")

	first, err := f.manager.Load(ctx, created.ID())
	require.NoError(t, err)
	second, err := f.manager.Load(ctx, created.ID())
	require.NoError(t, err)

	require.NoError(t, first.StartTransaction(ctx, "bob", ""))
	require.NoError(t, second.StartTransaction(ctx, "carol", ""))
	_, err = first.SetDataKey("title", ir.IRString("bob's"))
	require.NoError(t, err)
	_, err = second.SetDataKey("title", ir.IRString("carol's"))
	require.NoError(t, err)

	saved, err := first.EndTransaction(ctx)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = second.EndTransaction(ctx)
	assert.False(t, saved)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, second.InTransaction())
	assert.Equal(t, int64(1), second.Revision())

	revs, err := created.Revisions(ctx)
	require.NoError(t, err)
	assert.Len(t, revs, 2)
	assert.Equal(t, ir.IRString("bob's"), revs[1].DataKeys["title"])

	require.NoError(t, second.Reload(ctx))
	assert.Equal(t, int64(2), second.Revision())
	assert.True(t, edit(t, second, map[string]ir.IRValue{"title": ir.IRString("carol's")}))
	assert.Equal(t, int64(3), second.Revision())
}

func TestStartCurrentUserTransaction(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")

	err := r.StartCurrentUserTransaction(context.Background())
	assert.True(t, HasCode(err, ErrCodeNoCurrentUser))

	ctx := WithUser(context.Background(), "dave")
	require.NoError(t, r.StartCurrentUserTransaction(ctx))
	_, err = r.SetDataKey("title", ir.IRString("by dave"))
	require.NoError(t, err)
	_, err = r.EndTransaction(ctx)
	require.NoError(t, err)

	latest, err := r.LatestRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dave", latest.Author)
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")
	edit(t, r, map[string]ir.IRValue{"title": ir.IRString("T")})

	loaded, err := f.manager.Load(ctx, r.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Revision())
	assert.Equal(t, ir.IRString("T"), loaded.GetDataKey("title"))
	assert.Equal(t, "article", loaded.TypeName())

	_, err = f.manager.Load(ctx, 999)
	assert.True(t, IsNotFound(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	require.NoError(t, f.manager.Delete(ctx, r.ID()))
	_, err := f.manager.Load(ctx, r.ID())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(f.manager.Delete(ctx, r.ID())))
}

func TestManagerResumesClockFromStore(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")
	edit(t, r, map[string]ir.IRValue{"views": ir.IRInt(1)})

	m, err := NewManager(context.Background(), f.store, f.manager.Registry())
	require.NoError(t, err)
	assert.Equal(t, f.clock.Current(), m.Clock().Current())
}

func TestErrorFormatting(t *testing.T) {
	e := &Error{Code: ErrCodeRevisionConflict, Message: "record changed", TypeName: "article", RecordID: 4, Err: errors.New("boom")}
	assert.Equal(t, "REVISION_CONFLICT: record changed (article 4): boom", e.Error())
	assert.Equal(t, ErrCodeRevisionConflict, CodeOf(e))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
