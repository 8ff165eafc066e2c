package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Database    string
	WriteConfig bool
}

// InitResult reports the initialized database.
type InitResult struct {
	Database      string `json:"database"`
	SchemaVersion int    `json:"schema_version"`
	ConfigWritten string `json:"config_written,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database if it does not exist and apply any pending
schema migrations. With --write-config, also write the effective
configuration to the config path if no file exists there.

Examples:
  appframe init
  appframe init --db ./data/app.db --write-config`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().BoolVar(&opts.WriteConfig, "write-config", false, "write the config file if missing")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	version, err := st.SchemaVersion(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}
	result := InitResult{Database: cfg.Database.Path, SchemaVersion: version}
	opts.logger().Info("database ready", zap.String("path", result.Database), zap.Int("schema_version", version))

	if opts.WriteConfig {
		path := opts.ConfigPath
		if path == "" {
			return NewExitError(ExitCommandError, "no config path set")
		}
		if _, err := os.Stat(path); err == nil {
			formatter.VerboseLog("Config %s exists, leaving it unchanged", path)
		} else {
			if err := cfg.Save(path); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			result.ConfigWritten = path
		}
	}

	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Database %s at schema version %d\n", result.Database, result.SchemaVersion)
		if result.ConfigWritten != "" {
			fmt.Fprintf(w, "✓ Wrote config %s\n", result.ConfigWritten)
		}
	})
}
