package revisionable

import (
	"context"

	"github.com/roach88/appframe/internal/ir"
)

// EventType names a lifecycle event.
type EventType string

const (
	// EventBeforeSave fires before a changed transaction is written.
	// A listener error vetoes the save.
	EventBeforeSave EventType = "before_save"

	// EventRevisionAdded fires after a revision row is committed.
	EventRevisionAdded EventType = "revision_added"

	// EventTransactionEnded fires when a transaction finishes, whatever
	// its outcome.
	EventTransactionEnded EventType = "transaction_ended"
)

// Event is passed to listeners. Revision is a snapshot: for before_save it
// is the pending revision, for revision_added the committed one, for
// transaction_ended the record's revision after the transaction.
//
// Listeners must not call back into the Revisionable that fired the event.
type Event struct {
	Type          EventType
	Seq           int64
	TransactionID string
	RecordID      int64
	TypeName      string
	Status        string
	Changes       []string
	Revision      ir.RevisionRecord
}

// Listener handles a lifecycle event.
type Listener func(ctx context.Context, ev Event) error

// listenerSet keeps listeners per event type in registration order.
type listenerSet map[EventType][]Listener

func (s listenerSet) add(t EventType, l Listener) {
	s[t] = append(s[t], l)
}

func (s listenerSet) get(t EventType) []Listener {
	return s[t]
}
