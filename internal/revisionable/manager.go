package revisionable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/store"
)

// Manager creates and loads revisionables of registered types. It owns the
// logical clock, the transaction ID generator and the global listeners.
// Safe for concurrent use.
type Manager struct {
	store    *store.Store
	registry *Registry
	clock    Sequencer
	tokens   TokenGenerator
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.RWMutex
	listeners listenerSet
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the logical clock. By default the clock resumes after the
// highest seq in the store.
func WithClock(c Sequencer) Option {
	return func(m *Manager) { m.clock = c }
}

// WithTokenGenerator sets the transaction ID generator.
// Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(m *Manager) { m.tokens = g }
}

// WithNow sets the wall clock used for created_at timestamps.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over st for the types in reg.
func NewManager(ctx context.Context, st *store.Store, reg *Registry, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("new manager: store is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("new manager: registry is nil")
	}

	m := &Manager{
		store:     st,
		registry:  reg,
		tokens:    UUIDv7Generator{},
		now:       time.Now,
		logger:    zap.NewNop(),
		listeners: listenerSet{},
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.clock == nil {
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("new manager: %w", err)
		}
		m.clock = NewClockAt(seq)
	}
	return m, nil
}

// Registry returns the type registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Store returns the underlying store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Clock returns the logical clock.
func (m *Manager) Clock() Sequencer {
	return m.clock
}

// AddListener registers a listener for every revisionable of this manager.
// Manager listeners run before per-record listeners.
func (m *Manager) AddListener(t EventType, l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners.add(t, l)
}

func (m *Manager) listenersFor(t EventType) []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Listener(nil), m.listeners.get(t)...)
}

func (m *Manager) timestamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

// Create inserts a new record of typeName and commits revision 1 holding
// the type's defaults, the label and the initial state.
func (m *Manager) Create(ctx context.Context, typeName, label, author string) (*Revisionable, error) {
	rtype, err := m.registry.Get(typeName)
	if err != nil {
		return nil, err
	}

	id, err := m.store.CreateRevisionable(ctx, typeName, label, rtype.InitialState, m.timestamp())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", typeName, err)
	}

	r := newRevisionable(m, rtype, ir.RevisionRecord{
		RecordID: id,
		TypeName: typeName,
		Label:    label,
		State:    rtype.InitialState,
		DataKeys: rtype.Defaults(),
		Parts:    emptyParts(rtype),
	})

	if err := r.StartTransaction(ctx, author, "created"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.txn.forced = true
	r.mu.Unlock()

	if _, err := r.EndTransaction(ctx); err != nil {
		if delErr := m.store.DeleteRevisionable(ctx, id); delErr != nil {
			m.logger.Warn("failed to remove record after failed create",
				zap.Int64("record_id", id), zap.Error(delErr))
		}
		return nil, err
	}

	m.logger.Info("record created", zap.String("type", typeName), zap.Int64("record_id", id))
	return r, nil
}

// Load returns the record at its latest revision.
func (m *Manager) Load(ctx context.Context, id int64) (*Revisionable, error) {
	head, err := m.store.ReadRevisionable(ctx, id)
	if err != nil {
		return nil, notFound(err, "record %d does not exist", id)
	}
	rtype, err := m.registry.Get(head.TypeName)
	if err != nil {
		return nil, err
	}
	latest, err := m.store.ReadLatestRevision(ctx, id)
	if err != nil {
		return nil, notFound(err, "record %d has no revisions", id)
	}
	return newRevisionable(m, rtype, latest), nil
}

// Delete removes a record and its history.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.store.DeleteRevisionable(ctx, id); err != nil {
		return notFound(err, "record %d does not exist", id)
	}
	m.logger.Info("record deleted", zap.Int64("record_id", id))
	return nil
}

// CopyRevision copies revision rev of record sourceID into record targetID
// in a new transaction by author. rev 0 copies the latest revision. On
// error the target's transaction is rolled back.
func (m *Manager) CopyRevision(ctx context.Context, sourceID, rev, targetID int64, author string, copier *Copier) (*Revisionable, error) {
	var source ir.RevisionRecord
	var err error
	if rev == 0 {
		source, err = m.store.ReadLatestRevision(ctx, sourceID)
	} else {
		source, err = m.store.ReadRevision(ctx, sourceID, rev)
	}
	if err != nil {
		return nil, notFound(err, "revision %d of record %d does not exist", rev, sourceID)
	}

	target, err := m.Load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	comments := fmt.Sprintf("copied from %s %d revision %d", source.TypeName, source.RecordID, source.Revision)
	if err := target.StartTransaction(ctx, author, comments); err != nil {
		return nil, err
	}
	if err := copier.Copy(ctx, source, target); err != nil {
		if rbErr := target.RollbackTransaction(ctx); rbErr != nil {
			m.logger.Warn("rollback after failed copy", zap.Error(rbErr))
		}
		return nil, err
	}
	if _, err := target.EndTransaction(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("revision copied",
		zap.Int64("source_id", sourceID),
		zap.Int64("source_revision", source.Revision),
		zap.Int64("target_id", targetID),
		zap.Int64("target_revision", target.Revision()))
	return target, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		e := newError(ErrCodeRevisionNotFound, format, args...)
		e.Err = err
		return e
	}
	return err
}

func emptyParts(t ir.RecordType) ir.IRObject {
	parts := make(ir.IRObject, len(t.Parts))
	for _, p := range t.Parts {
		parts[p] = ir.IRNull{}
	}
	return parts
}
