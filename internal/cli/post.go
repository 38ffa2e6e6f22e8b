package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PiperEve/BlueGhost/internal/model"
)

// PostOptions holds flags shared by the post subcommands.
type PostOptions struct {
	*RootOptions
	Background string
	TextColor  string
	Theme      string
	Duration   int
	Caption    string
}

func (o *PostOptions) style() model.Style {
	return model.Style{Background: o.Background, TextColor: o.TextColor, Theme: o.Theme}
}

// NewPostCommand creates the post command and its payload subcommands.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish a ghost that expires after the post TTL",
		Long: `Publish a ghost. Each subcommand carries one payload kind.

Example:
  blueghost --user u1 --name Ann post text "hello world"
  blueghost --user u1 post voice https://media/x.m4a --duration 12
  blueghost --user u1 post music trk_42 --caption "on repeat"
  blueghost --user u1 post image https://media/p.jpg`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Background, "background", "", "background colour")
	flags.StringVar(&opts.TextColor, "text-color", "", "text colour")
	flags.StringVar(&opts.Theme, "theme", "", "visual theme")

	text := &cobra.Command{
		Use:   "text <text>...",
		Short: "Post text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(opts, cmd, model.TextOf(strings.Join(args, " ")))
		},
	}

	voice := &cobra.Command{
		Use:   "voice <uri>",
		Short: "Post a voice note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(opts, cmd, model.VoiceOf(args[0], opts.Duration))
		},
	}
	voice.Flags().IntVar(&opts.Duration, "duration", 0, "length in seconds (required)")
	_ = voice.MarkFlagRequired("duration")

	music := &cobra.Command{
		Use:   "music <track-id>",
		Short: "Post a music track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(opts, cmd, model.MusicOf(args[0], opts.Duration, opts.Caption))
		},
	}
	music.Flags().IntVar(&opts.Duration, "duration", 0, "length in seconds")
	music.Flags().StringVar(&opts.Caption, "caption", "", "caption shown with the track")

	image := &cobra.Command{
		Use:   "image <uri>",
		Short: "Post an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(opts, cmd, model.ImageOf(args[0]))
		},
	}

	cmd.AddCommand(text, voice, music, image)
	return cmd
}

func runPost(opts *PostOptions, cmd *cobra.Command, payload model.Payload) error {
	draft := model.Draft{Payload: payload, Style: opts.style()}
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		view, err := a.facade.CreatePost(ctx, a.user, draft)
		if err != nil {
			return a.fail(err)
		}
		a.out.VerboseLog("post %s expires at %s", view.ID, view.ExpiresAt.Format(timeLayout))
		return a.out.Success(view)
	})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a live post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				removed, err := a.facade.DeletePost(ctx, a.user, args[0])
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(deleteResult{ID: args[0], Deleted: removed})
			})
		},
	}
}

// NewReactCommand creates the react command.
func NewReactCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "react <post-id> like|dislike",
		Short: "Toggle a like or dislike on a post",
		Long: `Toggle a reaction. Repeating the same reaction removes it; the
opposite reaction replaces it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseReaction(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid reaction", err)
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				view, err := a.facade.React(ctx, a.user, args[0], kind)
				if err != nil {
					return a.fail(err)
				}
				return a.out.Success(view)
			})
		},
	}
}
