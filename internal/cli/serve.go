package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	EnvOptions
	Addr string

	// Listening is called with the bound address once the listener is
	// open. Tests use it to find an ephemeral port.
	Listening func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API over HTTP",
		Long: `Load the record types, open the database and serve the built-in API
methods under /api/{method}, the method index under /api and Prometheus
metrics under /metrics. SIGINT or SIGTERM shuts the server down
gracefully within server.shutdown_timeout.

Example:
  appframe serve --addr :8080 --db ./appframe.db --types ./types`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	opts.EnvOptions.bind(cmd)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.config()
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, opts.RootOptions, opts.EnvOptions)
	if err != nil {
		return err
	}
	defer e.Close()
	logger := e.logger

	server, err := e.apiServer()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register methods", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: cfg.GetReadHeaderTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening",
			zap.String("addr", ln.Addr().String()),
			zap.Strings("methods", server.MethodNames()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.GetShutdownTimeout()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if opts.Listening != nil {
		opts.Listening(ln.Addr().String())
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	logger.Info("server stopped")
	return nil
}
