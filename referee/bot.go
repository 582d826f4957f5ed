// Package referee runs the game against a chat transport: it serializes
// inbound events through classification and the state machine, emits the
// resulting actions, and turns faults into a failure notice and shutdown.
package referee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/command"
	"github.com/onnwee/contact-bot/game"
	"github.com/onnwee/contact-bot/telemetry"
)

// Bot owns the game state. All methods are safe for concurrent use; each
// event is classified, applied and emitted under one lock.
type Bot struct {
	mu    sync.Mutex
	state *game.State
	tr    chat.Transport

	// pending holds the shutdown actions not attempted after a failed
	// terminal emit; Fail delivers them.
	pending []game.Action
}

// New returns a bot with no game that acts through tr.
func New(tr chat.Transport) *Bot {
	telemetry.Init()
	return &Bot{state: game.NewState(), tr: tr}
}

// Handle processes one inbound event. State changes are committed before
// any action is emitted, so a returned *Fault leaves the state as if the
// transition happened. Events after shutdown are ignored.
func (b *Bot) Handle(ctx context.Context, ev chat.Event) (out game.Outcome, err error) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "referee.handle",
		attribute.String("event.kind", ev.Kind.String()),
		attribute.String("message.id", ev.Message.ID),
	)
	defer func() { telemetry.EndSpan(span, err) }()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "referee"))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Stopped() {
		return game.Outcome{Terminal: true}, nil
	}

	start := time.Now()
	defer func() { telemetry.HandleDuration.Observe(time.Since(start).Seconds()) }()
	telemetry.EventsReceived.WithLabelValues(ev.Kind.String()).Inc()

	in, out, err := b.transition(ev)
	if err != nil {
		log.Error("transition failed", slog.Any("err", err))
		return out, err
	}
	b.record(log, ev, in, out)

	var n int
	if n, err = emitUntil(ctx, b.tr, out.Actions); err != nil {
		log.Error("emit failed", slog.String("intent", in.Kind.String()), slog.Any("err", err))
		if out.Terminal {
			b.pending = append([]game.Action{}, out.Actions[n+1:]...)
		}
	}
	return out, err
}

func (b *Bot) transition(ev chat.Event) (in command.Intent, out game.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Class: FaultInternal, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	in = command.Classify(ev, b.tr.IsSelf(ev.Message.Author))
	out = b.state.Apply(ev.Message, in)
	return in, out, nil
}

func (b *Bot) record(log *slog.Logger, ev chat.Event, in command.Intent, out game.Outcome) {
	telemetry.IntentsClassified.WithLabelValues(in.Kind.String()).Inc()
	switch {
	case in.Kind == command.Ignore:
		log.Debug("ignored event", slog.String("kind", ev.Kind.String()), slog.String("message", ev.Message.ID))
	case in.Command() || in.Kind == command.Clue:
		log.Info(fmt.Sprintf(">> (%s) %s", ev.Message.Author.Name, ev.Message.Content), slog.String("intent", in.Kind.String()))
	default:
		log.Debug("self event", slog.String("intent", in.Kind.String()), slog.String("message", ev.Message.ID))
	}
	if out.Rejection != nil {
		telemetry.Rejections.WithLabelValues(out.Rejection.Code).Inc()
		log.Info("intent rejected", slog.String("intent", in.Kind.String()), slog.String("reason", out.Rejection.Error()))
	} else {
		switch in.Kind {
		case command.Start:
			telemetry.GamesStarted.Inc()
		case command.Clue:
			telemetry.CluesRegistered.Inc()
		}
	}
	telemetry.SetGame(b.state.Active, len(b.state.Clues))
}

// Announce posts the online notice and the start prompt.
func (b *Bot) Announce(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Stopped() {
		return nil
	}
	return Emit(ctx, b.tr, []game.Action{
		{Kind: game.Broadcast, Text: game.OnlineNoticeMD},
		{Kind: game.Broadcast, Text: game.StartPrompt},
	})
}

// Shutdown applies the shutdown transition as if !!shutdown had been typed
// and attempts every resulting action even if some fail. It is a no-op once
// the bot has stopped.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdownLocked(ctx)
}

func (b *Bot) shutdownLocked(ctx context.Context) error {
	if b.state.Stopped() {
		return nil
	}
	out := b.state.Apply(chat.Message{}, command.Intent{Kind: command.Shutdown})
	telemetry.SetGame(b.state.Active, len(b.state.Clues))
	return emitAll(ctx, b.tr, out.Actions)
}

// Fail announces cause in the room and shuts down, both best-effort. When
// the fault interrupted a shutdown, the actions it left behind are
// attempted instead of a second shutdown.
func (b *Bot) Fail(ctx context.Context, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rest := b.pending
	b.pending = nil
	if b.state.Stopped() && rest == nil {
		return nil
	}
	var errs []error
	notice := game.Action{Kind: game.Broadcast, Text: "An error occurred: " + cause.Error()}
	if err := emitOne(ctx, b.tr, notice); err != nil {
		errs = append(errs, err)
	}
	if rest != nil {
		errs = append(errs, emitAll(ctx, b.tr, rest))
	} else {
		errs = append(errs, b.shutdownLocked(ctx))
	}
	return errors.Join(errs...)
}

// Stopped reports whether the bot has shut down.
func (b *Bot) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Stopped()
}

// Snapshot returns a copy of the game state.
func (b *Bot) Snapshot() game.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Snapshot()
}
