package testutil_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/revisionable"
	"github.com/roach88/appframe/internal/store"
	"github.com/roach88/appframe/internal/testutil"
)

var noteType = ir.RecordType{
	Name:         "note",
	DataKeys:     []ir.DataKeyDef{{Name: "title", Type: "string", Default: ir.IRString("")}},
	States:       []string{"draft"},
	InitialState: "draft",
}

// recordHistory creates a note in a fresh store, edits it once and returns
// its revisions.
func recordHistory(t *testing.T, clock *testutil.DeterministicClock, tokens *testutil.SequentialTokenGenerator) []ir.RevisionRecord {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := revisionable.NewRegistry(noteType)
	require.NoError(t, err)
	m, err := revisionable.NewManager(ctx, st, reg,
		revisionable.WithClock(clock),
		revisionable.WithTokenGenerator(tokens),
		revisionable.WithNow(testutil.SteppingNow(testutil.FixedTime, time.Second)),
	)
	require.NoError(t, err)

	r, err := m.Create(ctx, "note", "Minutes", "alice")
	require.NoError(t, err)
	require.NoError(t, r.StartTransaction(ctx, "bob", "retitle"))
	_, err = r.SetDataKey("title", ir.IRString("Weekly"))
	require.NoError(t, err)
	_, err = r.EndTransaction(ctx)
	require.NoError(t, err)

	revs, err := r.Revisions(ctx)
	require.NoError(t, err)
	return revs
}

func TestDeterministicClock_RevisionSeqs(t *testing.T) {
	revs := recordHistory(t, testutil.NewDeterministicClock(), testutil.NewSequentialTokenGenerator("txn"))
	require.Len(t, revs, 2)

	// before_save, revision_added and transaction_ended each take a seq;
	// the revision carries the revision_added one.
	assert.Equal(t, int64(2), revs[0].Seq)
	assert.Equal(t, int64(5), revs[1].Seq)
	assert.Equal(t, "txn-0001", revs[0].TransactionID)
	assert.Equal(t, "txn-0002", revs[1].TransactionID)
	assert.Equal(t, "2026-01-01T00:00:01Z", revs[0].CreatedAt)
	assert.Equal(t, "2026-01-01T00:00:02Z", revs[1].CreatedAt)
}

func TestDeterministicClock_ResetReplaysHistory(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	tokens := testutil.NewSequentialTokenGenerator("txn")

	first := recordHistory(t, clock, tokens)
	assert.Equal(t, int64(6), clock.Current())

	clock.Reset()
	tokens.Reset()
	assert.Equal(t, int64(0), clock.Current())

	second := recordHistory(t, clock, tokens)
	assert.Equal(t, first, second, "a reset clock reproduces seqs, tokens and content hashes")
}

func TestDeterministicClock_ConcurrentNext(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	const workers, calls = 20, 50

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*calls)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seq := clock.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls, "no seq is handed out twice")
	assert.Equal(t, int64(workers*calls), clock.Current())
}

func TestSteppingNow_Concurrent(t *testing.T) {
	now := testutil.SteppingNow(testutil.FixedTime, time.Minute)

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 10)
	assert.Equal(t, testutil.FixedTime.Add(10*time.Minute), now())
	assert.Equal(t, time.UTC, testutil.FixedTime.Location())
}
