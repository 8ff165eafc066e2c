package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpCreate   = "create"
	OpStart    = "start"
	OpSetKey   = "set_key"
	OpSetPart  = "set_part"
	OpSetLabel = "set_label"
	OpSetState = "set_state"
	OpEnd      = "end"
	OpRollback = "rollback"
	OpCopy     = "copy"
	OpVeto     = "veto"
)

// Assertion types.
const (
	AssertRevisionCount = "revision_count"
	AssertDataKey       = "data_key"
	AssertEventOrder    = "event_order"
	AssertError         = "error"
)

// Scenario is a scripted sequence of revisionable operations with
// assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Types is the directory of CUE record type definitions.
	// Relative paths are resolved against the scenario file location.
	Types string `yaml:"types"`

	// Author is the default transaction author. Default: "harness".
	Author string `yaml:"author,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Record is the alias of the record the step works on.
	Record string `yaml:"record,omitempty"`

	// Type is the record type for create.
	Type string `yaml:"type,omitempty"`

	Label    string `yaml:"label,omitempty"`
	State    string `yaml:"state,omitempty"`
	Author   string `yaml:"author,omitempty"`
	Comments string `yaml:"comments,omitempty"`

	// Key and Part name the data key or part for set_key and set_part.
	Key  string `yaml:"key,omitempty"`
	Part string `yaml:"part,omitempty"`

	// Value is the new data key or part value.
	Value any `yaml:"value,omitempty"`

	// From is the source alias for copy.
	From string `yaml:"from,omitempty"`

	// Revision is the source revision for copy; 0 copies the latest.
	Revision int64 `yaml:"revision,omitempty"`

	// SkipKeys are data keys the copy leaves alone.
	SkipKeys []string `yaml:"skip_keys,omitempty"`

	// CopyLabel makes the copy carry the source label over.
	CopyLabel bool `yaml:"copy_label,omitempty"`

	// Message is the veto reason.
	Message string `yaml:"message,omitempty"`
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Record is the alias the assertion is about.
	Record string `yaml:"record,omitempty"`

	// Count is the expected number of revisions for revision_count.
	Count int `yaml:"count,omitempty"`

	// Key and Value are the data key and its expected value for data_key.
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Revision selects the revision for data_key; 0 means latest.
	Revision int64 `yaml:"revision,omitempty"`

	// Events lists event names for event_order. An entry may carry the
	// transaction status as "transaction_ended:rolled_back".
	Events []string `yaml:"events,omitempty"`

	// Step and Code identify the expected failure for error.
	Step int    `yaml:"step,omitempty"`
	Code string `yaml:"code,omitempty"`
}

// LoadScenario loads a scenario from a YAML file. The types path is
// resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath loads a scenario, resolving the types path
// relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Types != "" && !filepath.IsAbs(scenario.Types) && basePath != "" {
		scenario.Types = filepath.Join(basePath, scenario.Types)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Types == "" {
		return fmt.Errorf("types directory is required")
	}
	if _, err := os.Stat(s.Types); os.IsNotExist(err) {
		return fmt.Errorf("types directory not found: %s", s.Types)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	if s.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if s.Record == "" {
		return fmt.Errorf("steps[%d]: record is required for %s", index, s.Op)
	}

	switch s.Op {
	case OpCreate:
		if s.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for create", index)
		}
	case OpSetKey:
		if s.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for set_key", index)
		}
	case OpSetPart:
		if s.Part == "" {
			return fmt.Errorf("steps[%d]: part is required for set_part", index)
		}
	case OpSetState:
		if s.State == "" {
			return fmt.Errorf("steps[%d]: state is required for set_state", index)
		}
	case OpCopy:
		if s.From == "" {
			return fmt.Errorf("steps[%d]: from is required for copy", index)
		}
		if s.Revision < 0 {
			return fmt.Errorf("steps[%d]: revision must be non-negative", index)
		}
	case OpStart, OpSetLabel, OpEnd, OpRollback, OpVeto:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRevisionCount:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for revision_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for revision_count", index)
		}
	case AssertDataKey:
		if a.Record == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: record and key are required for data_key", index)
		}
	case AssertEventOrder:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for event_order", index)
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d is out of range", index, a.Step)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
