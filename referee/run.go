package referee

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/telemetry"
)

// Run feeds events from src to b until the game shuts down, src closes or
// ctx is done. A fault is announced in the room, followed by a best-effort
// shutdown, and then returned.
func Run(ctx context.Context, src chat.Source, b *Bot) error {
	log := slog.Default().With(slog.String("component", "referee"))
	depth, _ := src.(interface{ Len() int })
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, chat.ErrClosed) || ctx.Err() != nil {
				log.Info("event source finished", slog.Any("reason", err))
				return nil
			}
			return err
		}
		if depth != nil {
			telemetry.SetQueueDepth(depth.Len())
		}

		out, err := b.Handle(ctx, ev)
		if err != nil {
			class := FaultInternal
			var f *Fault
			if errors.As(err, &f) {
				class = f.Class
			}
			telemetry.Faults.WithLabelValues(class.String()).Inc()
			log.Error("fault, shutting down", slog.String("class", class.String()), slog.Any("err", err))
			if ferr := b.Fail(context.WithoutCancel(ctx), err); ferr != nil {
				log.Warn("shutdown after fault incomplete", slog.Any("err", ferr))
			}
			return err
		}
		if out.Terminal {
			log.Info("shutdown requested")
			return nil
		}
	}
}
