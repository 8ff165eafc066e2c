package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/appframe/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Types  []string          `json:"types,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found in the type definitions.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [types-dir]",
		Short: "Validate record type definitions",
		Long: `Load and validate the CUE record type definitions in a directory.

All errors are collected before reporting. The directory defaults to
types.dir from the config.

Exit codes:
  0 - All types valid
  1 - One or more types are invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Types.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, typesDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, loadErrors := compiler.LoadDir(typesDir, compiler.LoadModeCollectAll)
	if loaded == nil {
		return failLoad(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, typesDir)

	result := ValidationResult{Valid: len(loadErrors) == 0}
	for _, rt := range loaded.Types {
		result.Types = append(result.Types, rt.Name)
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toIssue(err))
	}

	if result.Valid {
		return formatter.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "✓ All types valid (%d)\n", len(result.Types))
		})
	}

	if formatter.IsJSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message},
		}); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, issue := range result.Errors {
			if issue.Line > 0 {
				fmt.Fprintf(w, "line %d\n", issue.Line)
			}
			fmt.Fprintf(w, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func toIssue(err error) ValidationIssue {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return ValidationIssue{Code: loadErr.Code, Message: loadErr.Message, Line: loadErr.Line()}
	}
	return ValidationIssue{Code: compiler.ErrCodeGeneric, Message: err.Error()}
}

// failLoad reports an error that stopped loading altogether.
func failLoad(f *OutputFormatter, err error) error {
	issue := toIssue(err)
	return f.Fail(ExitCommandError, issue.Code, issue.Message, nil)
}
