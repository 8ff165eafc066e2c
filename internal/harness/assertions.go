package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			if ev.Event == EventStepFailed {
				fmt.Fprintf(&buf, "  step %d failed: %s\n", ev.Step, ev.Code)
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s %s rev %d\n", ev.Seq, ev.Record, formatEvent(ev), ev.Revision)
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the store.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store

	// IDs maps record aliases to record IDs.
	IDs map[string]int64
}

func (a *AssertionContext) recordID(alias string) (int64, error) {
	id, ok := a.IDs[alias]
	if !ok {
		return 0, fmt.Errorf("unknown record %q", alias)
	}
	return id, nil
}

// assertRevisionCount checks the number of stored revisions of a record.
func assertRevisionCount(actx *AssertionContext, assertion Assertion) error {
	id, err := actx.recordID(assertion.Record)
	if err != nil {
		return err
	}
	revisions, err := actx.Store.ListRevisions(actx.Ctx, id)
	if err != nil {
		return fmt.Errorf("list revisions of %q: %w", assertion.Record, err)
	}
	if len(revisions) != assertion.Count {
		return &AssertionError{
			Type:     AssertRevisionCount,
			Expected: fmt.Sprintf("%d revisions of %s", assertion.Count, assertion.Record),
			Actual:   fmt.Sprintf("%d revisions", len(revisions)),
		}
	}
	return nil
}

// assertDataKey checks a data key value of the latest or a given revision.
func assertDataKey(actx *AssertionContext, assertion Assertion) error {
	id, err := actx.recordID(assertion.Record)
	if err != nil {
		return err
	}

	var rev ir.RevisionRecord
	if assertion.Revision == 0 {
		rev, err = actx.Store.ReadLatestRevision(actx.Ctx, id)
	} else {
		rev, err = actx.Store.ReadRevision(actx.Ctx, id, assertion.Revision)
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertDataKey,
			Expected: fmt.Sprintf("revision %d of %s", assertion.Revision, assertion.Record),
			Actual:   err.Error(),
		}
	}

	expected, err := ir.FromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("data_key %s: expected value: %w", assertion.Key, err)
	}
	actual, ok := rev.DataKeys[assertion.Key]
	if !ok {
		actual = ir.IRNull{}
	}
	if !ir.Equal(expected, actual) {
		return &AssertionError{
			Type:     AssertDataKey,
			Expected: fmt.Sprintf("%s.%s = %s", assertion.Record, assertion.Key, formatValue(expected)),
			Actual:   formatValue(actual),
		}
	}
	return nil
}

// assertEventOrder checks that the record's events contain the listed
// events in order. Other events may appear in between.
func assertEventOrder(result *Result, assertion Assertion) error {
	record := assertion.Record
	events := result.EventsFor(record)

	next := 0
	for _, ev := range events {
		if next == len(assertion.Events) {
			break
		}
		if eventMatches(ev, assertion.Events[next]) {
			next++
		}
	}
	if next < len(assertion.Events) {
		actual := make([]string, len(events))
		for i, ev := range events {
			actual[i] = formatEvent(ev)
		}
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events of %s in order: %v", record, assertion.Events),
			Actual:   fmt.Sprintf("missing %s in %v", assertion.Events[next], actual),
			Trace:    events,
		}
	}
	return nil
}

func eventMatches(ev TraceEvent, want string) bool {
	name, status, hasStatus := strings.Cut(want, ":")
	if ev.Event != name {
		return false
	}
	return !hasStatus || ev.Status == status
}

// assertStepError checks that a step failed with the expected code.
func assertStepError(result *Result, assertion Assertion) error {
	code, failed := result.StepErrors[assertion.Step]
	if !failed {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("step %d fails with %s", assertion.Step, assertion.Code),
			Actual:   "step succeeded",
		}
	}
	if code != assertion.Code {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("step %d fails with %s", assertion.Step, assertion.Code),
			Actual:   fmt.Sprintf("failed with %s", code),
		}
	}
	return nil
}

func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRevisionCount:
			err = assertRevisionCount(actx, assertion)
		case AssertDataKey:
			err = assertDataKey(actx, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result, assertion)
		case AssertError:
			err = assertStepError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
