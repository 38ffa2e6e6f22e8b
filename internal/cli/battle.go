package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// BattleOptions holds flags for the battle command.
type BattleOptions struct {
	*RootOptions
	Text     string
	Image    string
	Voice    string
	Music    string
	Duration int
	Caption  string
	Theme    string
}

func (o *BattleOptions) draft() (model.Draft, error) {
	var payloads []model.Payload
	if o.Text != "" {
		payloads = append(payloads, model.TextOf(o.Text))
	}
	if o.Image != "" {
		payloads = append(payloads, model.ImageOf(o.Image))
	}
	if o.Voice != "" {
		payloads = append(payloads, model.VoiceOf(o.Voice, o.Duration))
	}
	if o.Music != "" {
		payloads = append(payloads, model.MusicOf(o.Music, o.Duration, o.Caption))
	}
	if len(payloads) != 1 {
		return model.Draft{}, fmt.Errorf("exactly one of --text, --image, --voice, --music is required")
	}
	return model.Draft{Payload: payloads[0], Style: model.Style{Theme: o.Theme}}, nil
}

// NewBattleCommand creates the battle command.
func NewBattleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BattleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "battle <original-post-id>",
		Short: "Challenge a post with a new one",
		Long: `Start a battle between an existing post and a new challenger.
The challenger is published like any other post.

Example:
  blueghost --user u2 battle 0192... --text "mine is better"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := opts.draft()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid challenger", err)
			}
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
				view, err := a.facade.StartBattle(ctx, a.user, args[0], draft)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(view)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "challenger text")
	cmd.Flags().StringVar(&opts.Image, "image", "", "challenger image uri")
	cmd.Flags().StringVar(&opts.Voice, "voice", "", "challenger voice note uri")
	cmd.Flags().StringVar(&opts.Music, "music", "", "challenger music track id")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "voice or music length in seconds")
	cmd.Flags().StringVar(&opts.Caption, "caption", "", "music caption")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "visual theme")

	return cmd
}

// NewVoteCommand creates the vote command.
func NewVoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <battle-id> original|challenge",
		Short: "Vote for one side of an active battle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := model.ParseSide(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid side", err)
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				view, err := a.facade.Vote(ctx, a.user, args[0], side)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(view)
			})
		},
	}
}
