// Package command classifies raw chat events into game intents.
//
// Classification is a pure function of the event, whether its author is the
// bot, and the fixed command grammar; it never looks at game state.
package command

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/onnwee/contact-bot/chat"
)

// Prefix starts every command.
const Prefix = "!!"

// OnlineNotice is the rich-text form of the announcement the bot posts when it
// comes online. The markdown it sends is OnlineNoticeMarkdown.
const (
	OnlineNotice         = "<b>The bot is currently online. Type <code>!!help</code> to see a list of commands.</b>"
	OnlineNoticeMarkdown = "**The bot is currently online. Type `!!help` to see a list of commands.**"
)

// Kind enumerates intents.
type Kind int

const (
	Ignore Kind = iota
	Start
	Add
	Unstar
	Help
	Reset
	Shutdown
	Clue
	SelfDefense
	SelfOnline
	SelfClueAck
	StarredUnpin
	Unknown
)

var kindNames = [...]string{
	Ignore:       "ignore",
	Start:        "start",
	Add:          "add",
	Unstar:       "unstar",
	Help:         "help",
	Reset:        "reset",
	Shutdown:     "shutdown",
	Clue:         "clue",
	SelfDefense:  "self_defense",
	SelfOnline:   "self_online",
	SelfClueAck:  "self_clue_ack",
	StarredUnpin: "starred_unpin",
	Unknown:      "unknown",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Intent is the classified meaning of one event. Letter is set for Start and
// Add, Number for Unstar, SelfClueAck and StarredUnpin, Text for Clue.
type Intent struct {
	Kind   Kind
	Letter string
	Number int
	Text   string
}

// Command reports whether the intent came from a user typed "!!" command.
func (i Intent) Command() bool {
	switch i.Kind {
	case Start, Add, Unstar, Help, Reset, Shutdown, Unknown:
		return true
	}
	return false
}

var (
	clueEcho  = regexp.MustCompile(`^(\d+) \(.+?\): <b>.+?</b>$`)
	startCmd  = regexp.MustCompile(`^!!start ([a-zA-Z])$`)
	addCmd    = regexp.MustCompile(`^!!add ([a-zA-Z])$`)
	unstarCmd = regexp.MustCompile(`^!!unstar (\d+)$`)
)

// Classify maps an event to an intent. self reports whether the event's
// message was authored by the bot. The first matching rule wins.
func Classify(ev chat.Event, self bool) Intent {
	text := ev.Message.Content

	if ev.Kind == chat.EventStarToggled && !ev.Starred && self {
		if n, ok := clueNumber(text); ok {
			return Intent{Kind: StarredUnpin, Number: n}
		}
	}
	if ev.Kind != chat.EventMessagePosted {
		return Intent{Kind: Ignore}
	}

	if self {
		if n, ok := clueNumber(text); ok {
			return Intent{Kind: SelfClueAck, Number: n}
		}
		if !strings.Contains(text, ":") && strings.Contains(text, "defending") {
			return Intent{Kind: SelfDefense}
		}
		if text == OnlineNotice {
			return Intent{Kind: SelfOnline}
		}
	}

	if len(text) >= len("<b></b>") && strings.HasPrefix(text, "<b>") && strings.HasSuffix(text, "</b>") {
		return Intent{Kind: Clue, Text: text[len("<b>") : len(text)-len("</b>")]}
	}

	if m := startCmd.FindStringSubmatch(text); m != nil {
		return Intent{Kind: Start, Letter: m[1]}
	}
	if m := addCmd.FindStringSubmatch(text); m != nil {
		return Intent{Kind: Add, Letter: m[1]}
	}
	if m := unstarCmd.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Intent{Kind: Unstar, Number: n}
		}
	}

	switch text {
	case Prefix + "help":
		return Intent{Kind: Help}
	case Prefix + "reset":
		return Intent{Kind: Reset}
	case Prefix + "shutdown":
		return Intent{Kind: Shutdown}
	}

	if strings.HasPrefix(text, Prefix) {
		return Intent{Kind: Unknown}
	}
	return Intent{Kind: Ignore}
}

// clueNumber extracts the clue number from a numbered clue echo such as
// "3 (alice): <b>tree</b>".
func clueNumber(text string) (int, bool) {
	m := clueEcho.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
