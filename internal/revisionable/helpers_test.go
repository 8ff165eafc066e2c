package revisionable

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/store"
	"github.com/roach88/appframe/internal/testutil"
)

func articleType(name string) ir.RecordType {
	return ir.RecordType{
		Name: name,
		DataKeys: []ir.DataKeyDef{
			{Name: "title", Type: "string", Default: ir.IRString("")},
			{Name: "body", Type: "string"},
			{Name: "views", Type: "int", Default: ir.IRInt(0)},
		},
		Parts:        []string{"tags", "related_items"},
		States:       []string{"draft", "published"},
		InitialState: "draft",
	}
}

type fixture struct {
	store   *store.Store
	manager *Manager
	clock   *testutil.DeterministicClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := NewRegistry(articleType("article"), articleType("news"))
	require.NoError(t, err)

	clock := testutil.NewDeterministicClock()
	m, err := NewManager(context.Background(), st, reg,
		WithClock(clock),
		WithTokenGenerator(testutil.NewSequentialTokenGenerator("txn")),
		WithNow(testutil.SteppingNow(testutil.FixedTime, time.Second)),
	)
	require.NoError(t, err)
	return &fixture{store: st, manager: m, clock: clock}
}

func (f *fixture) create(t *testing.T, typeName, label string) *Revisionable {
	t.Helper()
	r, err := f.manager.Create(context.Background(), typeName, label, "alice")
	require.NoError(t, err)
	return r
}

// edit runs one transaction that sets the given data keys.
func edit(t *testing.T, r *Revisionable, keys map[string]ir.IRValue) bool {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.StartTransaction(ctx, "bob", "edit"))
	for k, v := range keys {
		_, err := r.SetDataKey(k, v)
		require.NoError(t, err)
	}
	saved, err := r.EndTransaction(ctx)
	require.NoError(t, err)
	return saved
}

// eventLog records events in dispatch order.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listener(ctx context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = string(ev.Type)
		if ev.Status != "" {
			out[i] += ":" + ev.Status
		}
	}
	return out
}

func (l *eventLog) listenAll(m *Manager) {
	m.AddListener(EventBeforeSave, l.listener)
	m.AddListener(EventRevisionAdded, l.listener)
	m.AddListener(EventTransactionEnded, l.listener)
}
