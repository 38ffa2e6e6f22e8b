package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/PiperEve/BlueGhost/internal/clock"
	"github.com/PiperEve/BlueGhost/internal/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	Database string

	// Caller identity for one-shot commands.
	User     string
	Name     string
	Entitled bool

	// Clock and IDs override the system clock and UUIDv7 ids (for testing).
	Clock clock.Clock
	IDs   model.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the blueghost CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueghost",
		Short: "BlueGhost - ephemeral posts and battles",
		Long: `BlueGhost keeps short-lived "ghost" posts that vanish after a day,
head-to-head battles whose winner lives on, and a monthly rewind quota for
saving favourites past their expiry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Config, "config", "", "path to YAML config file")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides storage settings)")
	flags.StringVar(&opts.User, "user", "", "caller user id")
	flags.StringVar(&opts.Name, "name", "", "caller display name")
	flags.BoolVar(&opts.Entitled, "entitled", false, "caller holds the premium entitlement")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewReactCommand(opts))
	cmd.AddCommand(NewBattleCommand(opts))
	cmd.AddCommand(NewVoteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRewindCommand(opts))
	cmd.AddCommand(NewTickCommand(opts))

	return cmd
}

func (o *RootOptions) userContext() model.UserContext {
	return model.UserContext{
		UserID:      o.User,
		DisplayName: o.Name,
		Entitled:    o.Entitled,
	}
}
