package revisionable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func TestEvents_CommitOrder(t *testing.T) {
	f := newFixture(t)
	log := &eventLog{}
	log.listenAll(f.manager)

	r := f.create(t, "article", "A")
	assert.Equal(t, []string{"before_save", "revision_added", "transaction_ended:committed"}, log.types())

	seqs := make([]int64, len(log.events))
	for i, ev := range log.events {
		seqs[i] = ev.Seq
		assert.Equal(t, r.ID(), ev.RecordID)
		assert.Equal(t, "article", ev.TypeName)
		assert.Equal(t, "txn-0001", ev.TransactionID)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, int64(1), log.events[1].Revision.Revision)
}

func TestEvents_EmptyAndRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	log := &eventLog{}
	log.listenAll(f.manager)

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	_, err := r.EndTransaction(ctx)
	require.NoError(t, err)

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	_, err = r.SetLabel("B")
	require.NoError(t, err)
	require.NoError(t, r.RollbackTransaction(ctx))

	assert.Equal(t, []string{"transaction_ended:empty", "transaction_ended:rolled_back"}, log.types())
	assert.Equal(t, []string{"label"}, log.events[1].Changes)
}

func TestEvents_PersistedWithRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")
	edit(t, r, map[string]ir.IRValue{"title": ir.IRString("T")})

	events, err := f.store.ReadEvents(ctx, r.ID())
	require.NoError(t, err)
	require.Len(t, events, 6)

	var names []string
	for i, ev := range events {
		names = append(names, ev.Event)
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, []string{
		"before_save", "revision_added", "transaction_ended",
		"before_save", "revision_added", "transaction_ended",
	}, names)
	assert.Equal(t, int64(2), events[5].Revision)
}

func TestEvents_ListenerRegistrationOrder(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")

	var order []string
	f.manager.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		order = append(order, "manager-1")
		return nil
	})
	r.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		order = append(order, "record-1")
		return nil
	})
	f.manager.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		order = append(order, "manager-2")
		return nil
	})
	r.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		order = append(order, "record-2")
		return nil
	})

	edit(t, r, map[string]ir.IRValue{"views": ir.IRInt(1)})
	assert.Equal(t, []string{"manager-1", "manager-2", "record-1", "record-2"}, order)
}

func TestEvents_BeforeSaveSeesPendingRevision(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")

	var seen Event
	r.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		seen = ev
		return nil
	})
	edit(t, r, map[string]ir.IRValue{"title": ir.IRString("New"), "views": ir.IRInt(9)})

	assert.Equal(t, int64(2), seen.Revision.Revision)
	assert.Equal(t, ir.IRString("New"), seen.Revision.DataKeys["title"])
	assert.Equal(t, []string{"data_keys.title", "data_keys.views"}, seen.Changes)
}

func TestEvents_BeforeSaveVeto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "article", "A")

	log := &eventLog{}
	log.listenAll(f.manager)
	veto := errors.New("title must not be empty")
	var laterCalled bool
	r.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		if ir.Equal(ev.Revision.DataKeys["title"], ir.IRString("")) {
			return veto
		}
		return nil
	})
	r.AddListener(EventBeforeSave, func(ctx context.Context, ev Event) error {
		laterCalled = true
		return nil
	})

	require.NoError(t, r.StartTransaction(ctx, "bob", ""))
	_, err := r.SetDataKey("views", ir.IRInt(5))
	require.NoError(t, err)
	saved, err := r.EndTransaction(ctx)

	assert.False(t, saved)
	assert.Equal(t, ErrCodeSaveVetoed, CodeOf(err))
	assert.ErrorIs(t, err, veto)
	assert.False(t, laterCalled, "dispatch stops at the first veto")
	assert.False(t, r.InTransaction())
	assert.Equal(t, int64(1), r.Revision())
	assert.Equal(t, ir.IRInt(0), r.GetDataKey("views"))
	assert.Equal(t, []string{"before_save", "transaction_ended:rolled_back"}, log.types())
}

func TestEvents_LateListenerErrorsDoNotFailCommit(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "article", "A")
	r.AddListener(EventRevisionAdded, func(ctx context.Context, ev Event) error {
		return errors.New("notification failed")
	})

	assert.True(t, edit(t, r, map[string]ir.IRValue{"views": ir.IRInt(1)}))
	assert.Equal(t, int64(2), r.Revision())
}
