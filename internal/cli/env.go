package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/api"
	"github.com/roach88/appframe/internal/compiler"
	"github.com/roach88/appframe/internal/dbhelper"
	"github.com/roach88/appframe/internal/revisionable"
	"github.com/roach88/appframe/internal/store"
)

// EnvOptions are the flags of commands that work on a database.
// Empty values fall back to the config.
type EnvOptions struct {
	Database string
	TypesDir string
}

func (o *EnvOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&o.TypesDir, "types", "", "record types directory (default from config)")
}

// env is an opened store with the record types loaded.
type env struct {
	store    *store.Store
	registry *revisionable.Registry
	manager  *revisionable.Manager
	logger   *zap.Logger
}

func openEnv(ctx context.Context, root *RootOptions, o EnvOptions) (*env, error) {
	cfg := root.config()
	dbPath := o.Database
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	typesDir := o.TypesDir
	if typesDir == "" {
		typesDir = cfg.Types.Dir
	}
	logger := root.logger()

	loaded, errs := compiler.LoadDir(typesDir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load types", errs[0])
	}
	reg, err := revisionable.NewRegistry(loaded.Types...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register types", err)
	}
	logger.Debug("types loaded", zap.String("dir", typesDir), zap.Strings("types", reg.Names()))

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	m, err := revisionable.NewManager(ctx, st, reg, revisionable.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start manager", err)
	}
	logger.Debug("database opened", zap.String("path", dbPath))

	return &env{store: st, registry: reg, manager: m, logger: logger}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// records returns the collection over the head table.
func (e *env) records() (*dbhelper.Collection, error) {
	return api.NewRecordsCollection(sqlx.NewDb(e.store.DB(), store.DriverName), e.logger)
}

// failRevisionable reports a revisionable error with its code. Missing
// records and revisions are command errors; other failures exit 1.
func failRevisionable(f *OutputFormatter, err error) error {
	code := string(revisionable.CodeOf(err))
	if code == "" {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return f.Fail(ExitFailure, "ERROR", err.Error(), nil)
	}
	exit := ExitFailure
	if revisionable.IsNotFound(err) || code == string(revisionable.ErrCodeUnknownType) {
		exit = ExitCommandError
	}
	return f.Fail(exit, code, strings.TrimPrefix(err.Error(), code+": "), nil)
}

// parseID parses a positive record ID argument.
func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: must be a positive integer", name, s))
	}
	return id, nil
}

// apiServer returns an API server with the built-in methods registered.
func (e *env) apiServer() (*api.Server, error) {
	records, err := e.records()
	if err != nil {
		return nil, err
	}
	s := api.NewServer(e.logger)
	if err := api.NewBuiltins(e.manager, records).Register(s); err != nil {
		return nil, err
	}
	return s, nil
}
