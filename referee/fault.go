package referee

import (
	"fmt"

	"github.com/onnwee/contact-bot/game"
)

// FaultClass says where a fault came from.
type FaultClass int

const (
	// FaultTransport is a failed delivery, mark, unmark or session call.
	FaultTransport FaultClass = iota
	// FaultInternal is a bug: a panic during classification or transition,
	// or an action the emitter does not know.
	FaultInternal
)

// String returns a human-readable name for the fault class.
func (c FaultClass) String() string {
	switch c {
	case FaultTransport:
		return "transport"
	case FaultInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Fault is a non-recoverable error raised while handling an event. The
// driver answers it with a failure notice and a shutdown.
type Fault struct {
	Class FaultClass
	// Action is the action being emitted, zero when the fault happened before emission.
	Action game.ActionKind
	Err    error
}

func (f *Fault) Error() string {
	if f.Action != 0 {
		return fmt.Sprintf("%s fault on %s: %v", f.Class, f.Action, f.Err)
	}
	return fmt.Sprintf("%s fault: %v", f.Class, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }
