package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live posts, battles or your saved posts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "posts",
		Short: "List live posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				posts, err := a.facade.ListActivePosts(ctx, a.user)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(posts)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "battles",
		Short: "List battles, including resolved ones still on display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				battles, err := a.facade.ListActiveBattles(ctx, a.user)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(battles)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "saved",
		Short: "List the caller's rewind saves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				saved, err := a.facade.ListSavedPosts(ctx, a.user)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(saved)
			})
		},
	})

	return cmd
}
