package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/referee"
)

func newPlayCmd() *cobra.Command {
	var (
		name  string
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Referee a game on the terminal",
		Long: `Referee a game read from stdin, one "name: message" line per chat
message, written in chat markdown. "/unpin <id>" takes the star off a pinned
message. The game shuts down on !!shutdown or at the end of input.`,
		Example: `  printf 'alice: !!start c\nbob: **cat**\n' | contactctl play`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return play(cmd.Context(), cmd, name, !quiet)
		},
	}
	cmd.Flags().StringVar(&name, "name", "ContactBot", "the bot's name in the room")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the online announcement")
	return cmd
}

func play(ctx context.Context, cmd *cobra.Command, name string, announce bool) error {
	console := chat.NewConsole(name, cmd.InOrStdin(), cmd.OutOrStdout(), chat.NewMemoryPins())
	bot := referee.New(console)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eof := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(eof)
		return console.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if announce {
			if err := bot.Announce(gctx); err != nil {
				return err
			}
		}
		if err := referee.Run(gctx, scriptSource{q: console, eof: eof}, bot); err != nil {
			return err
		}
		return bot.Shutdown(context.WithoutCancel(gctx))
	})
	return g.Wait()
}

// scriptSource ends the event stream once input is exhausted and every
// queued event, including the bot's own echoes, has been handled.
type scriptSource struct {
	q   chat.Source
	eof <-chan struct{}
}

func (s scriptSource) Next(ctx context.Context) (chat.Event, error) {
	nctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.eof:
			cancel()
		case <-nctx.Done():
		}
	}()
	ev, err := s.q.Next(nctx)
	if err != nil && ctx.Err() == nil && nctx.Err() != nil {
		// Input is done. Next on a canceled context still returns queued events.
		if ev, err := s.q.Next(nctx); err == nil {
			return ev, nil
		}
		return chat.Event{}, chat.ErrClosed
	}
	return ev, err
}
