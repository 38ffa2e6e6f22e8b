package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/PiperEve/BlueGhost/internal/expiry"
)

// NewRewindCommand creates the rewind command.
func NewRewindCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Save posts past their expiry within the monthly quota",
		Long: `Rewind keeps a private copy of a post after it disappears.
Free accounts get a small monthly quota; the entitlement raises it and
grants bonus credits.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save <post-id>",
		Short: "Save a live post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				saved, err := a.facade.SaveToRewind(ctx, a.user, args[0])
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(saved)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "usage",
		Short: "Show this month's quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				usage, err := a.facade.RewindUsage(ctx, a.user)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(usage)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purchase",
		Short: "Record an entitlement purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				receipt, err := a.facade.PurchaseEntitlement(ctx, a.user)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(receipt)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <saved-id>",
		Short: "Delete a saved post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				removed, err := a.facade.DeleteSavedPost(ctx, a.user, args[0])
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(deleteResult{ID: args[0], Deleted: removed})
			})
		},
	})

	return cmd
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one reconciliation pass and the monthly reset check",
		Long: `Resolve finished battles, remove expired posts and reset rewind
counters for a new month. "serve" does this on a schedule; tick is for
cron-driven or manual deployments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				report, err := a.facade.Tick(ctx)
				if err != nil {
					return a.fail(err)
				}
				reset, err := a.facade.MonthlyReset(ctx)
				if err != nil {
					return a.fail(err)
				}
				res := tickResult{Reconcile: report, Reset: reset}
				snap, err := a.facade.Snapshot(ctx)
				if err != nil {
					return a.fail(err)
				}
				policy := expiry.Policy{WinnerExtension: a.facade.Config().WinnerExtension}
				if next, ok := expiry.NextDeadline(snap.Content, report.Now, policy); ok {
					res.Next = &next
				}
				return a.out.Success(res)
			})
		},
	}
}
