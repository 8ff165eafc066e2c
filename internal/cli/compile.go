package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/appframe/internal/compiler"
	"github.com/roach88/appframe/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // write the types to this file instead of stdout
}

// CompileResult is the compiled form of a types directory.
type CompileResult struct {
	FrameworkVersion string          `json:"framework_version"`
	Types            []ir.RecordType `json:"types"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [types-dir]",
		Short: "Compile record types to JSON",
		Long: `Compile the CUE record type definitions in a directory and print
them as JSON, with defaults resolved. Fails on the first invalid type.

Examples:
  appframe compile ./types
  appframe compile ./types -o types.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Types.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write compiled types to file")

	return cmd
}

func runCompile(opts *CompileOptions, typesDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, loadErrors := compiler.LoadDir(typesDir, compiler.LoadModeFailFast)
	if len(loadErrors) > 0 {
		return failLoad(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Compiled %d type(s) from %d file(s)", len(loaded.Types), loaded.FileCount)

	result := CompileResult{FrameworkVersion: ir.FrameworkVersion, Types: loaded.Types}

	if opts.Output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode types", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		return formatter.Render(map[string]any{"output": opts.Output, "types": len(result.Types)}, func(w io.Writer) {
			fmt.Fprintf(w, "✓ Compiled %d type(s) to %s\n", len(result.Types), opts.Output)
		})
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
