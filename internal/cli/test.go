package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/appframe/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run revision scenarios",
		Long: `Run YAML revision scenarios against an in-memory store.

Each scenario names its types directory, drives records through
transactions and copies, and checks assertions. When a golden file
exists for the scenario, its trace snapshot must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  appframe test ./scenarios
  appframe test ./scenarios --filter "copy_*"
  appframe test ./scenarios --update
  appframe test ./scenarios --golden ./testdata/golden --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, path := range scenarioFiles {
		res := runScenario(opts, path, goldenDir)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !formatter.IsJSON() {
			printScenario(formatter, res)
		}
	}

	if formatter.IsJSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_TEST_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			}
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return nil
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and checks it against its golden
// file, or rewrites the golden file in update mode.
func runScenario(opts *TestOptions, path, goldenDir string) ScenarioResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	res := ScenarioResult{Name: scenario.Name}

	result, err := harness.RunWithLogger(scenario, opts.logger())
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Errors = append(res.Errors, result.Errors...)

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to snapshot trace: %v", err))
		return res
	}

	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")
	switch {
	case opts.Update:
		if err := os.MkdirAll(goldenDir, 0755); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			break
		}
		if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to write golden file: %v", err))
			break
		}
		res.Golden = "updated"
	default:
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			res.Golden = "missing"
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		case !bytes.Equal(golden, snapshot):
			res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
		default:
			res.Golden = "match"
		}
	}

	res.Pass = len(res.Errors) == 0
	return res
}

func printScenario(f *OutputFormatter, res ScenarioResult) {
	w := f.Writer
	if res.Pass {
		if res.Golden == "updated" {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", res.Name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", res.Name)
		}
		if res.Golden == "missing" {
			f.VerboseLog("  no golden file for %s", res.Name)
		}
		return
	}
	fmt.Fprintf(w, "✗ %s\n", res.Name)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
