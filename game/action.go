package game

import "github.com/onnwee/contact-bot/chat"

// ActionKind enumerates outbound actions.
type ActionKind int

const (
	Broadcast ActionKind = iota + 1
	Reply
	Mark
	Unmark
	LeaveAndLogout
)

func (k ActionKind) String() string {
	switch k {
	case Broadcast:
		return "broadcast"
	case Reply:
		return "reply"
	case Mark:
		return "mark"
	case Unmark:
		return "unmark"
	case LeaveAndLogout:
		return "leave_and_logout"
	default:
		return "unknown"
	}
}

// Action is one outbound step. Text is set for Broadcast and Reply, Target
// for Reply, Mark and Unmark.
type Action struct {
	Kind   ActionKind
	Text   string
	Target chat.Message
}

func broadcast(text string) Action { return Action{Kind: Broadcast, Text: text} }

func reply(text string, to chat.Message) Action { return Action{Kind: Reply, Text: text, Target: to} }

func mark(m chat.Message) Action { return Action{Kind: Mark, Target: m} }

func unmark(m chat.Message) Action { return Action{Kind: Unmark, Target: m} }

// Outcome is the result of applying one intent.
type Outcome struct {
	Actions []Action
	// Rejection is set when the intent was refused; Actions then holds the warning reply.
	Rejection *Rejection
	// Terminal is set by Shutdown. No further intents are applied afterwards.
	Terminal bool
}

func rejected(r *Rejection, to chat.Message) Outcome {
	return Outcome{Actions: []Action{reply(r.Warning(), to)}, Rejection: r}
}
