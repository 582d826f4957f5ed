package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDelivery wraps every failure to hand an outbound action to the room.
	ErrDelivery = errors.New("chat: delivery failed")
	// ErrNotConnected is returned by sends issued before the session is up or after logout.
	ErrNotConnected = errors.New("chat: not connected")
	// ErrClosed is returned by Source.Next once the source has been closed.
	ErrClosed = errors.New("chat: source closed")
)

// User identifies a chat participant. Equality is by ID.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Is reports whether u and other are the same participant.
func (u User) Is(other User) bool { return u.ID != "" && u.ID == other.ID }

// Message is a handle to a message seen in the room. Content is rich text.
type Message struct {
	ID      string    `json:"id"`
	Author  User      `json:"author"`
	Content string    `json:"content"`
	Sent    time.Time `json:"sent"`
}

// EventKind discriminates inbound events.
type EventKind int

const (
	// EventOther covers anything the game does not act on (joins, parts, notices).
	EventOther EventKind = iota
	// EventMessagePosted is a new message in the room.
	EventMessagePosted
	// EventStarToggled reports a star (pin) being added to or removed from a message.
	EventStarToggled
)

func (k EventKind) String() string {
	switch k {
	case EventMessagePosted:
		return "message_posted"
	case EventStarToggled:
		return "star_toggled"
	default:
		return "other"
	}
}

// Event is one inbound chat event.
type Event struct {
	Kind    EventKind
	Message Message
	// Starred is the new star state for EventStarToggled.
	Starred bool
}

// Posted builds a MessagePosted event.
func Posted(m Message) Event { return Event{Kind: EventMessagePosted, Message: m} }

// StarRemoved builds a StarToggled event for a star being taken off m.
func StarRemoved(m Message) Event { return Event{Kind: EventStarToggled, Message: m} }

// Identity answers whether a participant is the bot itself.
type Identity interface {
	IsSelf(u User) bool
}

// Transport carries the game's outbound actions to the room.
type Transport interface {
	Identity
	Broadcast(ctx context.Context, text string) error
	Reply(ctx context.Context, text string, target Message) error
	Mark(ctx context.Context, m Message) error
	Unmark(ctx context.Context, m Message) error
	Leave(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Source yields inbound events one at a time. Next blocks until an event is
// available, ctx is done, or the source is closed (ErrClosed).
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// Injector accepts events from outside the room session, such as star
// removals reported over the HTTP API.
type Injector interface {
	Inject(ev Event)
}

func deliveryErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDelivery, op, err)
}
