package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/compiler"
	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/revisionable"
	"github.com/roach88/appframe/internal/store"
	"github.com/roach88/appframe/internal/testutil"
)

const defaultAuthor = "harness"

// Harness executes the steps of one scenario.
type Harness struct {
	manager *revisionable.Manager
	author  string
	records map[string]*revisionable.Revisionable

	mu    sync.Mutex
	trace []TraceEvent
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory database. An error is returned only when
// the scenario cannot be run at all (types fail to load); step failures and
// failed assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with a logger for the manager.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	loaded, errs := compiler.LoadDir(scenario.Types, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load types: %w", errors.Join(errs...))
	}
	reg, err := revisionable.NewRegistry(loaded.Types...)
	if err != nil {
		return nil, fmt.Errorf("failed to register types: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	m, err := revisionable.NewManager(ctx, st, reg,
		revisionable.WithClock(testutil.NewDeterministicClock()),
		revisionable.WithTokenGenerator(testutil.NewSequentialTokenGenerator("txn")),
		revisionable.WithNow(testutil.SteppingNow(testutil.FixedTime, time.Second)),
		revisionable.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	author := scenario.Author
	if author == "" {
		author = defaultAuthor
	}
	h := &Harness{
		manager: m,
		author:  author,
		records: make(map[string]*revisionable.Revisionable),
	}
	for _, t := range []revisionable.EventType{
		revisionable.EventBeforeSave,
		revisionable.EventRevisionAdded,
		revisionable.EventTransactionEnded,
	} {
		m.AddListener(t, h.record)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			code := errorCode(err)
			result.StepErrors[i] = code
			h.append(TraceEvent{Event: EventStepFailed, Record: step.Record, Step: i, Code: code})
			logger.Debug("step failed", zap.Int("step", i), zap.String("op", step.Op), zap.Error(err))
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	expected := make(map[int]bool)
	for _, a := range scenario.Assertions {
		if a.Type == AssertError {
			expected[a.Step] = true
		}
	}
	for _, i := range sortedSteps(result.StepErrors) {
		if !expected[i] {
			result.AddError(fmt.Sprintf("step %d (%s) failed unexpectedly: %s", i, scenario.Steps[i].Op, result.StepErrors[i]))
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, IDs: h.ids()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	if step.Op == OpCreate {
		if _, exists := h.records[step.Record]; exists {
			return fmt.Errorf("record %q already exists", step.Record)
		}
		r, err := h.manager.Create(ctx, step.Type, step.Label, h.authorOf(step))
		if err != nil {
			return err
		}
		h.records[step.Record] = r
		return nil
	}

	r, ok := h.records[step.Record]
	if !ok {
		return fmt.Errorf("unknown record %q", step.Record)
	}

	switch step.Op {
	case OpStart:
		return r.StartTransaction(ctx, h.authorOf(step), step.Comments)
	case OpSetKey:
		value, err := ir.FromAny(step.Value)
		if err != nil {
			return fmt.Errorf("set_key %s: %w", step.Key, err)
		}
		_, err = r.SetDataKey(step.Key, value)
		return err
	case OpSetPart:
		value, err := ir.FromAny(step.Value)
		if err != nil {
			return fmt.Errorf("set_part %s: %w", step.Part, err)
		}
		_, err = r.SetPart(step.Part, value)
		return err
	case OpSetLabel:
		_, err := r.SetLabel(step.Label)
		return err
	case OpSetState:
		_, err := r.SetState(step.State)
		return err
	case OpEnd:
		_, err := r.EndTransaction(ctx)
		return err
	case OpRollback:
		return r.RollbackTransaction(ctx)
	case OpCopy:
		return h.copy(ctx, r, step)
	case OpVeto:
		message := step.Message
		if message == "" {
			message = "vetoed"
		}
		r.AddListener(revisionable.EventBeforeSave, func(context.Context, revisionable.Event) error {
			return errors.New(message)
		})
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) copy(ctx context.Context, target *revisionable.Revisionable, step Step) error {
	source, ok := h.records[step.From]
	if !ok {
		return fmt.Errorf("unknown record %q", step.From)
	}
	copier := revisionable.NewCopier(nil).
		SkipDataKeys(step.SkipKeys...).
		DefaultPartCopier(revisionable.CopyPartValue)
	if step.CopyLabel {
		copier.CopyLabel()
	}

	copied, err := h.manager.CopyRevision(ctx, source.ID(), step.Revision, target.ID(), h.authorOf(step), copier)
	if err != nil {
		return err
	}
	h.records[step.Record] = copied
	return nil
}

func (h *Harness) authorOf(step Step) string {
	if step.Author != "" {
		return step.Author
	}
	return h.author
}

// record is the manager listener that builds the trace.
func (h *Harness) record(_ context.Context, ev revisionable.Event) error {
	h.append(TraceEvent{
		Seq:           ev.Seq,
		Event:         string(ev.Type),
		RecordID:      ev.RecordID,
		Revision:      ev.Revision.Revision,
		TransactionID: ev.TransactionID,
		Status:        ev.Status,
		Changes:       append([]string(nil), ev.Changes...),
	})
	return nil
}

func (h *Harness) append(ev TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, ev)
}

func (h *Harness) ids() map[string]int64 {
	ids := make(map[string]int64, len(h.records))
	for alias, r := range h.records {
		ids[alias] = r.ID()
	}
	return ids
}

// collect fills in aliases on the trace and the final revision per record.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	aliases := make(map[int64]string, len(h.records))
	for alias, r := range h.records {
		aliases[r.ID()] = alias
	}

	h.mu.Lock()
	for _, ev := range h.trace {
		if ev.Record == "" && ev.RecordID != 0 {
			ev.Record = aliases[ev.RecordID]
		}
		result.Trace = append(result.Trace, ev)
	}
	h.mu.Unlock()

	for alias, r := range h.records {
		rev, err := h.manager.Store().ReadLatestRevision(ctx, r.ID())
		if err != nil {
			return fmt.Errorf("read final revision of %q: %w", alias, err)
		}
		result.Records[alias] = rev
	}
	return nil
}

// errorCode returns the revisionable error code, or a generic code for
// errors raised by the harness itself.
func errorCode(err error) string {
	if code := revisionable.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func sortedSteps(m map[int]string) []int {
	steps := make([]int, 0, len(m))
	for i := range m {
		steps = append(steps, i)
	}
	sort.Ints(steps)
	return steps
}

// formatEvent renders an event as name or name:status.
func formatEvent(ev TraceEvent) string {
	if ev.Status == "" {
		return ev.Event
	}
	return strings.Join([]string{ev.Event, ev.Status}, ":")
}
