package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/go-redis/redis"
	"github.com/spf13/cobra"

	"github.com/PiperEve/BlueGhost/internal/config"
	"github.com/PiperEve/BlueGhost/internal/lifecycle"
	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/notify"
	"github.com/PiperEve/BlueGhost/internal/persist"
)

// app is the wiring shared by every command: config, storage, sinks and
// the facade, opened for the duration of one command.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	out     *OutputFormatter
	backend persist.Backend
	facade  *lifecycle.Facade
	user    model.UserContext
	closers []func() error
}

func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	a := &app{
		cfg:    cfg,
		logger: cfg.NewLogger(cmd.ErrOrStderr()),
		out:    newFormatter(opts, cmd),
		user:   opts.userContext(),
	}

	lcfg, err := cfg.LifecycleConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid lifecycle config", err)
	}

	a.logger.Debug("opening storage", "driver", cfg.Storage.Driver)
	sopts := cfg.StorageOptions()
	sopts.Clock = opts.Clock
	a.backend, err = persist.Open(ctx, sopts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	a.closers = append(a.closers, a.backend.Close)

	notifier, err := a.buildNotifier()
	if err != nil {
		a.close()
		return nil, WrapExitError(ExitCommandError, "failed to configure notify sinks", err)
	}

	fopts := []lifecycle.Option{
		lifecycle.WithBackend(a.backend),
		lifecycle.WithNotifier(notifier),
		lifecycle.WithLogger(a.logger),
	}
	if opts.Clock != nil {
		fopts = append(fopts, lifecycle.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		fopts = append(fopts, lifecycle.WithIDs(opts.IDs))
	}
	a.facade = lifecycle.New(lcfg, fopts...)

	// Every facade call reconciles first, so a restore is enough here.
	if _, err := a.facade.Restore(ctx); err != nil {
		a.close()
		return nil, WrapExitError(ExitCommandError, "failed to load state", err)
	}
	return a, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	w := cmd.OutOrStdout()
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		NoColor:   color.NoColor || w != os.Stdout,
	}
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	var sinks notify.Multi
	for _, name := range a.cfg.Notify.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, notify.NewLog(a.logger))
		case "redis":
			client := redis.NewClient(&redis.Options{Addr: a.cfg.NotifyRedisAddr()})
			a.closers = append(a.closers, client.Close)
			sinks = append(sinks, notify.NewRedis(client, a.cfg.Notify.Channel))
		default:
			return nil, errors.New("unknown notify sink " + name)
		}
	}
	switch len(sinks) {
	case 0:
		return notify.Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("error closing resource", "error", err)
		}
	}
	a.closers = nil
}

// fail reports err and maps it to an exit code: domain rejections exit 1,
// everything else exits 2.
func (a *app) fail(err error) error {
	if model.IsDomainError(err) {
		_ = a.out.Error(string(model.CodeOf(err)), err.Error(), nil)
		return WrapExitError(ExitFailure, "request rejected", err)
	}
	_ = a.out.Error("INTERNAL", err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

// withApp opens the app, runs fn and closes everything afterwards.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
