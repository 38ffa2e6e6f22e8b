package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PiperEve/BlueGhost/internal/httpapi"
	"github.com/PiperEve/BlueGhost/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr        string
	NoScheduler bool

	// Listener replaces the TCP listener (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Long: `Serve loads persisted state, applies everything that fell due while
the process was down, then starts the HTTP API and the reconcile and
monthly-reset jobs. SIGINT or SIGTERM shuts down gracefully.

Example:
  blueghost serve --config blueghost.yaml
  blueghost serve --db ./blueghost.db --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&opts.NoScheduler, "no-scheduler", false, "do not run background jobs")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.facade.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}

	if a.cfg.Scheduler.Enabled && !opts.NoScheduler {
		loc, err := a.cfg.SchedulerLocation()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid scheduler timezone", err)
		}
		sched := scheduler.New(loc, a.cfg.Scheduler.JobTimeout, a.logger)
		if err := scheduler.RegisterLifecycle(sched, a.facade,
			a.cfg.Scheduler.Reconcile, a.cfg.Scheduler.MonthlyReset); err != nil {
			return WrapExitError(ExitCommandError, "failed to schedule jobs", err)
		}
		sched.Start()
		defer func() {
			<-sched.Stop().Done()
			a.logger.Info("scheduler stopped")
		}()
	}

	addr := a.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}

	srv := httpapi.NewServer(addr, httpapi.NewRouter(a.facade, a.logger))

	a.logger.Info("serving", "addr", ln.Addr().String(), "storage", a.cfg.Storage.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	a.logger.Info("server stopped gracefully")
	return nil
}
