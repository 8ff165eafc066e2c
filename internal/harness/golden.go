package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/appframe/internal/ir"
)

// TraceSnapshot captures the trace and final records of a scenario run.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Records      map[string]ir.RevisionRecord
}

// toCanonicalMap converts the snapshot to plain maps, since
// ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{"event": ev.Event}
		if ev.Event == EventStepFailed {
			m["step"] = ev.Step
			m["code"] = ev.Code
		} else {
			m["seq"] = ev.Seq
			m["revision"] = ev.Revision
			m["transaction_id"] = ev.TransactionID
		}
		if ev.Record != "" {
			m["record"] = ev.Record
		}
		if ev.Status != "" {
			m["status"] = ev.Status
		}
		if len(ev.Changes) > 0 {
			changes := make([]any, len(ev.Changes))
			for j, c := range ev.Changes {
				changes[j] = c
			}
			m["changes"] = changes
		}
		trace[i] = m
	}

	records := make(map[string]any, len(s.Records))
	for alias, rev := range s.Records {
		records[alias] = map[string]any{
			"revision":     rev.Revision,
			"label":        rev.Label,
			"state":        rev.State,
			"data_keys":    rev.DataKeys,
			"parts":        rev.Parts,
			"content_hash": rev.ContentHash,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"records":       records,
	}
}

// Snapshot returns the canonical JSON snapshot of a result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Records:      result.Records,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
