package game

import (
	"maps"
	"slices"
	"strings"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/command"
	"github.com/onnwee/contact-bot/markup"
)

// State is the bot's one game. The zero value is not ready; use NewState.
type State struct {
	Active   bool
	Letters  []string
	Defender *chat.User
	// Clues maps clue numbers to the message currently standing for the clue:
	// first the attacker's message, then the bot's numbered echo of it.
	Clues map[int]chat.Message
	// Defense is the latest "defending" announcement posted by the bot.
	Defense *chat.Message
	// Online is the bot's online notice.
	Online *chat.Message

	stopped bool
}

// NewState returns a running bot with no game.
func NewState() *State {
	return &State{Clues: make(map[int]chat.Message)}
}

// Stopped reports whether Shutdown has been applied.
func (s *State) Stopped() bool { return s.stopped }

// Apply transitions the state for intent in, classified from msg.
func (s *State) Apply(msg chat.Message, in command.Intent) Outcome {
	if s.stopped {
		return Outcome{Terminal: true}
	}
	switch in.Kind {
	case command.StarredUnpin:
		return s.starredUnpin(msg, in.Number)
	case command.SelfClueAck:
		s.Clues[in.Number] = msg
		return Outcome{Actions: []Action{mark(msg)}}
	case command.SelfDefense:
		var acts []Action
		if s.Defense != nil {
			acts = append(acts, unmark(*s.Defense))
		}
		d := msg
		s.Defense = &d
		return Outcome{Actions: append(acts, mark(msg))}
	case command.SelfOnline:
		o := msg
		s.Online = &o
		return Outcome{Actions: []Action{mark(msg)}}
	case command.Clue:
		return s.clue(msg, in.Text)
	case command.Start:
		return s.start(msg, in.Letter)
	case command.Add:
		return s.add(msg, in.Letter)
	case command.Unstar:
		return s.unstar(msg, in.Number)
	case command.Help:
		return Outcome{Actions: []Action{broadcast(HelpText)}}
	case command.Reset:
		return s.reset(msg)
	case command.Shutdown:
		return s.shutdown()
	case command.Unknown:
		return rejected(ErrInvalidCommand, msg)
	}
	return Outcome{}
}

// starredUnpin removes the pin from clue n after a human took its star off.
// If n is no longer registered, the starred message itself is unpinned.
func (s *State) starredUnpin(msg chat.Message, n int) Outcome {
	target, ok := s.Clues[n]
	if !ok {
		target = msg
	}
	return Outcome{Actions: []Action{unmark(target)}}
}

func (s *State) clue(msg chat.Message, text string) Outcome {
	if !s.Active {
		return rejected(ErrNoActiveGame, msg)
	}
	if s.Defender != nil && s.Defender.Is(msg.Author) {
		return rejected(ErrDefenderClue, msg)
	}
	n := s.nextClueNumber()
	s.Clues[n] = msg
	return Outcome{Actions: []Action{broadcast(clueText(n, msg.Author.Name, markup.Format(text)))}}
}

// nextClueNumber is the smallest positive integer not in use.
func (s *State) nextClueNumber() int {
	n := 1
	for {
		if _, used := s.Clues[n]; !used {
			return n
		}
		n++
	}
}

func (s *State) start(msg chat.Message, letter string) Outcome {
	if s.Active {
		return rejected(ErrGameInProgress, msg)
	}
	defender := msg.Author
	s.Active = true
	s.Letters = []string{strings.ToUpper(letter)}
	s.Defender = &defender
	return Outcome{Actions: []Action{broadcast(defendingText(defender.Name, s.Letters))}}
}

func (s *State) add(msg chat.Message, letter string) Outcome {
	if !s.Active {
		return rejected(ErrNoActiveGame, msg)
	}
	if s.Defender == nil || !s.Defender.Is(msg.Author) {
		return rejected(ErrAttackerAdd, msg)
	}
	s.Letters = append(s.Letters, strings.ToUpper(letter))
	return Outcome{Actions: []Action{broadcast(defendingText(s.Defender.Name, s.Letters))}}
}

func (s *State) unstar(msg chat.Message, n int) Outcome {
	if !s.Active {
		return rejected(ErrNoActiveGame, msg)
	}
	clue, ok := s.Clues[n]
	if !ok {
		return rejected(ErrNoSuchClue, msg)
	}
	delete(s.Clues, n)
	return Outcome{Actions: []Action{unmark(clue)}}
}

func (s *State) reset(msg chat.Message) Outcome {
	if !s.Active {
		return rejected(ErrNoActiveGame, msg)
	}
	acts := []Action{broadcast(ResettingText)}
	for _, n := range slices.Sorted(maps.Keys(s.Clues)) {
		acts = append(acts, unmark(s.Clues[n]))
	}
	// A game can be reset before the bot's defending echo arrives.
	if s.Defense != nil {
		acts = append(acts, unmark(*s.Defense))
	}
	acts = append(acts, broadcast(ResetPrompt))

	s.Clues = make(map[int]chat.Message)
	s.Defense = nil
	s.Defender = nil
	s.Letters = nil
	s.Active = false
	return Outcome{Actions: acts}
}

func (s *State) shutdown() Outcome {
	acts := []Action{broadcast(ShutdownText)}
	if s.Online != nil {
		acts = append(acts, unmark(*s.Online))
	}
	acts = append(acts, Action{Kind: LeaveAndLogout})
	s.stopped = true
	return Outcome{Actions: acts, Terminal: true}
}

// Snapshot is a read-only view of the state for status reporting.
type Snapshot struct {
	Active   bool     `json:"active"`
	Stopped  bool     `json:"stopped"`
	Letters  []string `json:"letters"`
	Defender string   `json:"defender,omitempty"`
	Clues    []int    `json:"clues"`
	Defense  string   `json:"defense_message_id,omitempty"`
	Online   string   `json:"online_message_id,omitempty"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Active:  s.Active,
		Stopped: s.stopped,
		Letters: slices.Clone(s.Letters),
		Clues:   slices.Sorted(maps.Keys(s.Clues)),
	}
	if snap.Letters == nil {
		snap.Letters = []string{}
	}
	if snap.Clues == nil {
		snap.Clues = []int{}
	}
	if s.Defender != nil {
		snap.Defender = s.Defender.Name
	}
	if s.Defense != nil {
		snap.Defense = s.Defense.ID
	}
	if s.Online != nil {
		snap.Online = s.Online.ID
	}
	return snap
}
