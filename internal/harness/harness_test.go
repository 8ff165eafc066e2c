package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func eventNames(events []TraceEvent) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = formatEvent(ev)
	}
	return names
}

func TestRun_CreateAndEdit(t *testing.T) {
	result, err := Run(loadTestScenario(t, "create_and_edit"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.StepErrors)

	assert.Equal(t, []string{
		"before_save",
		"revision_added",
		"transaction_ended:committed",
		"before_save",
		"revision_added",
		"transaction_ended:committed",
		"transaction_ended:empty",
	}, eventNames(result.EventsFor("a")))

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq, "trace seq must be gapless")
	}

	final := result.Records["a"]
	assert.Equal(t, int64(2), final.Revision)
	assert.Equal(t, "published", final.State)
	assert.Equal(t, ir.IRString("Hello"), final.DataKeys["title"])
}

func TestRun_CopyRevision(t *testing.T) {
	result, err := Run(loadTestScenario(t, "copy_revision"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	b := result.Records["b"]
	assert.Equal(t, "Target", b.Label, "label is not copied by default")
	assert.Equal(t, ir.IRInt(0), b.DataKeys["views"], "skipped key keeps its value")
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(2)}, b.Parts["related_items"])

	copyEvents := result.EventsFor("b")
	require.Len(t, copyEvents, 6)
	assert.Equal(t, []string{"data_keys.title", "parts.related_items"}, copyEvents[3].Changes)
}

func TestRun_VetoAndRollback(t *testing.T) {
	result, err := Run(loadTestScenario(t, "veto_and_rollback"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[int]string{4: "SAVE_VETOED", 8: "NO_TRANSACTION"}, result.StepErrors)
	assert.Equal(t, int64(1), result.Records["a"].Revision)
}

func TestRun_TypeMismatch(t *testing.T) {
	result, err := Run(loadTestScenario(t, "type_mismatch"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "TYPE_MISMATCH", result.StepErrors[2])
}

func TestRun_UnexpectedStepFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "ending without a transaction",
		Types:       typesDir(t),
		Steps: []Step{
			{Op: OpCreate, Record: "a", Type: "article"},
			{Op: OpEnd, Record: "a"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (end) failed unexpectedly: NO_TRANSACTION")
}

func TestRun_UnknownRecordAlias(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_alias",
		Description: "steps on a record that was never created",
		Types:       typesDir(t),
		Steps: []Step{
			{Op: OpStart, Record: "ghost"},
		},
		Assertions: []Assertion{
			{Type: AssertError, Step: 0, Code: "ERROR"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "failed_assertion",
		Description: "asserts the wrong revision count",
		Types:       typesDir(t),
		Steps: []Step{
			{Op: OpCreate, Record: "a", Type: "article", Label: "x"},
		},
		Assertions: []Assertion{
			{Type: AssertRevisionCount, Record: "a", Count: 3},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "3 revisions of a")
}

func TestRun_BadTypesDir(t *testing.T) {
	scenario := &Scenario{
		Name:  "bad_types",
		Types: t.TempDir(),
		Steps: []Step{{Op: OpCreate, Record: "a", Type: "article"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load types")
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "copy_revision")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
