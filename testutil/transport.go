package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/markup"
)

// Call is one recorded transport call. Text is the sent text for broadcast
// and reply; Target is the id of the message replied to, marked or unmarked.
type Call struct {
	Op     string
	Text   string
	Target string
}

// FakeTransport records every call. When Echo is set, each sent line is
// injected back as a bot-authored message, like the real transports do.
type FakeTransport struct {
	Self chat.User
	Echo chat.Injector
	// FailOn makes the named operation ("broadcast", "reply", "mark",
	// "unmark", "leave", "logout") return the error.
	FailOn map[string]error

	mu    sync.Mutex
	calls []Call
	seq   int
}

// NewFakeTransport returns a transport whose own user is self.
func NewFakeTransport(self string) *FakeTransport {
	return &FakeTransport{Self: chat.User{ID: self, Name: self}, FailOn: map[string]error{}}
}

// IsSelf reports whether u is the fake bot.
func (f *FakeTransport) IsSelf(u chat.User) bool { return f.Self.Is(u) }

func (f *FakeTransport) Broadcast(_ context.Context, text string) error {
	return f.send("broadcast", text, "")
}

func (f *FakeTransport) Reply(_ context.Context, text string, target chat.Message) error {
	return f.send("reply", text, target.ID)
}

func (f *FakeTransport) Mark(_ context.Context, m chat.Message) error {
	return f.record(Call{Op: "mark", Target: m.ID})
}

func (f *FakeTransport) Unmark(_ context.Context, m chat.Message) error {
	return f.record(Call{Op: "unmark", Target: m.ID})
}

func (f *FakeTransport) Leave(context.Context) error { return f.record(Call{Op: "leave"}) }

func (f *FakeTransport) Logout(context.Context) error { return f.record(Call{Op: "logout"}) }

// Calls returns a copy of the recorded calls.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Reset forgets recorded calls.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeTransport) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn[c.Op]; err != nil {
		return err
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *FakeTransport) send(op, text, target string) error {
	if err := f.record(Call{Op: op, Text: text, Target: target}); err != nil {
		return err
	}
	if f.Echo == nil {
		return nil
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f.mu.Lock()
		f.seq++
		id := fmt.Sprintf("echo-%d", f.seq)
		f.mu.Unlock()
		f.Echo.Inject(chat.Posted(chat.Message{ID: id, Author: f.Self, Content: markup.Render(line)}))
	}
	return nil
}
