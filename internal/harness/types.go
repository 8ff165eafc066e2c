package harness

import "github.com/roach88/appframe/internal/ir"

// Trace event kinds besides the revisionable lifecycle events.
const (
	// EventStepFailed records a step that returned an error.
	EventStepFailed = "step_failed"
)

// TraceEvent is one entry of a scenario trace: a lifecycle event dispatched
// by the manager, or a failed step.
type TraceEvent struct {
	Seq           int64    `json:"seq"`
	Event         string   `json:"event"`
	Record        string   `json:"record,omitempty"`
	RecordID      int64    `json:"record_id,omitempty"`
	Revision      int64    `json:"revision,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	Status        string   `json:"status,omitempty"`
	Changes       []string `json:"changes,omitempty"`
	Step          int      `json:"step,omitempty"`
	Code          string   `json:"code,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step failure was expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace holds events in dispatch order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed assertions and unexpected step failures.
	Errors []string `json:"errors,omitempty"`

	// StepErrors maps a step index to its error code.
	StepErrors map[int]string `json:"step_errors,omitempty"`

	// Records maps each alias to its latest revision at the end of the run.
	Records map[string]ir.RevisionRecord `json:"records,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
		StepErrors: make(map[int]string),
		Records:    make(map[string]ir.RevisionRecord),
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventsFor returns the lifecycle events of one record alias, in order.
func (r *Result) EventsFor(alias string) []TraceEvent {
	var events []TraceEvent
	for _, ev := range r.Trace {
		if ev.Record == alias && ev.Event != EventStepFailed {
			events = append(events, ev)
		}
	}
	return events
}
