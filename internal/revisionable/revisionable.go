package revisionable

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/appframe/internal/ir"
)

// Revisionable is a loaded record. Safe for concurrent use; listeners run
// while the record is locked and receive snapshots instead.
type Revisionable struct {
	mu        sync.Mutex
	manager   *Manager
	rtype     ir.RecordType
	current   ir.RevisionRecord
	selected  *ir.RevisionRecord
	txn       *transaction
	listeners listenerSet
}

// transaction is an open edit session on a revisionable.
type transaction struct {
	id       string
	author   string
	comments string
	base     ir.RevisionRecord
	working  ir.RevisionRecord
	forced   bool
}

func newRevisionable(m *Manager, rtype ir.RecordType, current ir.RevisionRecord) *Revisionable {
	if current.DataKeys == nil {
		current.DataKeys = ir.IRObject{}
	}
	if current.Parts == nil {
		current.Parts = ir.IRObject{}
	}
	return &Revisionable{
		manager:   m,
		rtype:     rtype,
		current:   current,
		listeners: listenerSet{},
	}
}

// ID returns the record ID.
func (r *Revisionable) ID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.RecordID
}

// TypeName returns the record type name.
func (r *Revisionable) TypeName() string {
	return r.rtype.Name
}

// RecordType returns the record type definition.
func (r *Revisionable) RecordType() ir.RecordType {
	return r.rtype
}

// Revision returns the latest committed revision number known to this
// instance.
func (r *Revisionable) Revision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Revision
}

// SelectedRevision returns the revision the getters read from.
func (r *Revisionable) SelectedRevision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().Revision
}

// AddListener registers a listener for this record only. It runs after the
// manager's listeners.
func (r *Revisionable) AddListener(t EventType, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners.add(t, l)
}

// view returns the revision getters read: the working copy inside a
// transaction, else the selected revision, else the latest. Caller holds mu.
func (r *Revisionable) view() *ir.RevisionRecord {
	if r.txn != nil {
		return &r.txn.working
	}
	if r.selected != nil {
		return r.selected
	}
	return &r.current
}

// Label returns the label.
func (r *Revisionable) Label() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().Label
}

// State returns the state.
func (r *Revisionable) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().State
}

// GetDataKey returns a data key value. Unset keys return IRNull.
func (r *Revisionable) GetDataKey(name string) ir.IRValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.view().DataKeys[name]; ok && v != nil {
		return ir.CloneValue(v)
	}
	return ir.IRNull{}
}

// GetPart returns a part value. Unset parts return IRNull.
func (r *Revisionable) GetPart(name string) ir.IRValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.view().Parts[name]; ok && v != nil {
		return ir.CloneValue(v)
	}
	return ir.IRNull{}
}

// DataKeys returns a copy of all data keys.
func (r *Revisionable) DataKeys() ir.IRObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view().DataKeys.Clone()
}

// Snapshot returns a copy of the revision the getters read.
func (r *Revisionable) Snapshot() ir.RevisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRevision(*r.view())
}

// InTransaction reports whether a transaction is open.
func (r *Revisionable) InTransaction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txn != nil
}

// PendingChanges lists what the open transaction changed so far, sorted.
// Returns nil outside a transaction.
func (r *Revisionable) PendingChanges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txn == nil {
		return nil
	}
	return r.txn.changes()
}

// SetDataKey sets a declared data key inside the open transaction. It
// returns true when the value changed.
func (r *Revisionable) SetDataKey(name string, value ir.IRValue) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireTransaction("set data key " + name); err != nil {
		return false, err
	}
	def, ok := r.rtype.DataKey(name)
	if !ok {
		return false, r.errorf(ErrCodeUnknownDataKey, "type %s has no data key %q", r.rtype.Name, name)
	}
	if value == nil {
		value = ir.IRNull{}
	}
	if !def.AcceptsValue(value) {
		return false, r.errorf(ErrCodeInvalidValue, "data key %q expects %s, got %s", name, def.Type, ir.TypeName(value))
	}
	if ir.Equal(r.txn.working.DataKeys[name], value) {
		return false, nil
	}
	r.txn.working.DataKeys[name] = ir.CloneValue(value)
	return true, nil
}

// SetPart sets a declared part inside the open transaction. It returns true
// when the value changed.
func (r *Revisionable) SetPart(name string, value ir.IRValue) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireTransaction("set part " + name); err != nil {
		return false, err
	}
	if !r.rtype.HasPart(name) {
		return false, r.errorf(ErrCodeUnknownPart, "type %s has no part %q", r.rtype.Name, name)
	}
	if value == nil {
		value = ir.IRNull{}
	}
	if ir.Equal(r.txn.working.Parts[name], value) {
		return false, nil
	}
	r.txn.working.Parts[name] = ir.CloneValue(value)
	return true, nil
}

// SetLabel sets the label inside the open transaction.
func (r *Revisionable) SetLabel(label string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireTransaction("set label"); err != nil {
		return false, err
	}
	if r.txn.working.Label == label {
		return false, nil
	}
	r.txn.working.Label = label
	return true, nil
}

// SetState sets the state inside the open transaction. The state must be
// declared by the type when the type declares states.
func (r *Revisionable) SetState(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireTransaction("set state"); err != nil {
		return false, err
	}
	if !r.rtype.HasState(state) {
		return false, r.errorf(ErrCodeInvalidState, "type %s has no state %q", r.rtype.Name, state)
	}
	if r.txn.working.State == state {
		return false, nil
	}
	r.txn.working.State = state
	return true, nil
}

func (r *Revisionable) requireTransaction(op string) error {
	if r.txn == nil {
		return r.errorf(ErrCodeNoTransaction, "%s: no transaction started", op)
	}
	return nil
}

func (r *Revisionable) lockedErrorf(code ErrorCode, format string, args ...any) *Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorf(code, format, args...)
}

// errorf builds an *Error for this record. Caller holds mu.
func (r *Revisionable) errorf(code ErrorCode, format string, args ...any) *Error {
	e := newError(code, format, args...)
	e.TypeName = r.rtype.Name
	e.RecordID = r.current.RecordID
	return e
}

// dispatch runs the manager's then the record's listeners for the event in
// registration order, stopping at the first error. Caller holds mu.
func (r *Revisionable) dispatch(ctx context.Context, ev Event) error {
	listeners := append(r.manager.listenersFor(ev.Type), r.listeners.get(ev.Type)...)
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// changes compares the working copy with the base revision.
func (t *transaction) changes() []string {
	var out []string
	if t.working.Label != t.base.Label {
		out = append(out, "label")
	}
	if t.working.State != t.base.State {
		out = append(out, "state")
	}
	out = append(out, diffKeys("data_keys.", t.base.DataKeys, t.working.DataKeys)...)
	out = append(out, diffKeys("parts.", t.base.Parts, t.working.Parts)...)
	sort.Strings(out)
	return out
}

func diffKeys(prefix string, a, b ir.IRObject) []string {
	var out []string
	seen := make(map[string]bool, len(a)+len(b))
	for _, obj := range []ir.IRObject{a, b} {
		for k := range obj {
			if seen[k] {
				continue
			}
			seen[k] = true
			if !ir.Equal(a[k], b[k]) {
				out = append(out, prefix+k)
			}
		}
	}
	return out
}

func cloneRevision(rev ir.RevisionRecord) ir.RevisionRecord {
	rev.DataKeys = rev.DataKeys.Clone()
	rev.Parts = rev.Parts.Clone()
	return rev
}
