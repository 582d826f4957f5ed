package referee

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/game"
	"github.com/onnwee/contact-bot/telemetry"
)

// Emit delivers actions to t in order. It stops at the first failure and
// returns it as a *Fault; later actions are not attempted.
func Emit(ctx context.Context, t chat.Transport, actions []game.Action) error {
	_, err := emitUntil(ctx, t, actions)
	return err
}

// emitUntil is Emit that also reports the index of the failed action.
func emitUntil(ctx context.Context, t chat.Transport, actions []game.Action) (int, error) {
	for i, a := range actions {
		if err := emitOne(ctx, t, a); err != nil {
			return i, err
		}
	}
	return len(actions), nil
}

// emitAll attempts every action even after failures and joins the faults.
func emitAll(ctx context.Context, t chat.Transport, actions []game.Action) error {
	var errs []error
	for _, a := range actions {
		if err := emitOne(ctx, t, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func emitOne(ctx context.Context, t chat.Transport, a game.Action) error {
	var err error
	switch a.Kind {
	case game.Broadcast:
		err = t.Broadcast(ctx, a.Text)
	case game.Reply:
		err = t.Reply(ctx, a.Text, a.Target)
	case game.Mark:
		err = t.Mark(ctx, a.Target)
	case game.Unmark:
		err = t.Unmark(ctx, a.Target)
	case game.LeaveAndLogout:
		if err = t.Leave(ctx); err == nil {
			err = t.Logout(ctx)
		}
	default:
		return &Fault{Class: FaultInternal, Action: a.Kind, Err: fmt.Errorf("unknown action kind %d", int(a.Kind))}
	}
	if err != nil {
		if telemetry.ActionFailures != nil {
			telemetry.ActionFailures.WithLabelValues(a.Kind.String()).Inc()
		}
		return &Fault{Class: FaultTransport, Action: a.Kind, Err: err}
	}
	if telemetry.ActionsEmitted != nil {
		telemetry.ActionsEmitted.WithLabelValues(a.Kind.String()).Inc()
	}
	return nil
}
