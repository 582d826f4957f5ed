package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

type sent struct {
	channel, parent, text string
}

type fakeIRC struct {
	mu        sync.Mutex
	onConnect func()
	onMessage func(twitch.PrivateMessage)
	joined    []string
	departed  []string
	said      []sent
	stop      chan struct{}
	token     string
}

func newFakeIRC() *fakeIRC { return &fakeIRC{stop: make(chan struct{})} }

func (f *fakeIRC) OnConnect(cb func()) { f.onConnect = cb }
func (f *fakeIRC) OnPrivateMessage(cb func(twitch.PrivateMessage)) { f.onMessage = cb }
func (f *fakeIRC) Join(channels ...string) { f.joined = append(f.joined, channels...) }
func (f *fakeIRC) Depart(channel string) { f.departed = append(f.departed, channel) }
func (f *fakeIRC) SetIRCToken(token string) { f.token = token }

func (f *fakeIRC) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, sent{channel: channel, text: text})
}

func (f *fakeIRC) Reply(channel, parent, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, sent{channel: channel, parent: parent, text: text})
}

func (f *fakeIRC) Connect() error {
	f.onConnect()
	<-f.stop
	return twitch.ErrClientDisconnected
}

func (f *fakeIRC) Disconnect() error {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	return nil
}

func newTestTwitch(t *testing.T) (*Twitch, *fakeIRC) {
	t.Helper()
	irc := newFakeIRC()
	tw := newTwitch(irc, TwitchConfig{Channel: "#Contact", Username: "ContactBot", UserID: "99"}, NewMemoryPins())
	return tw, irc
}

func TestTwitchSendBeforeConnect(t *testing.T) {
	tw, _ := newTestTwitch(t)
	err := tw.Broadcast(context.Background(), "hello")
	if !errors.Is(err, ErrDelivery) || !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Broadcast() = %v, want delivery/not connected", err)
	}
}

func TestTwitchRunAndEcho(t *testing.T) {
	tw, irc := newTestTwitch(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tw.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !tw.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("never connected")
		}
		time.Sleep(time.Millisecond)
	}
	if len(irc.joined) != 1 || irc.joined[0] != "contact" {
		t.Errorf("joined = %v, want [contact]", irc.joined)
	}

	if err := tw.Broadcast(ctx, "**Defender**:\nalice defending **A**"); err != nil {
		t.Fatalf("Broadcast() = %v", err)
	}
	if len(irc.said) != 2 || irc.said[1].text != "alice defending **A**" {
		t.Errorf("said = %+v", irc.said)
	}
	first, _ := tw.Next(ctx)
	second, _ := tw.Next(ctx)
	if first.Message.Content != "<b>Defender</b>:" {
		t.Errorf("first echo = %q", first.Message.Content)
	}
	if second.Message.Content != "alice defending <b>A</b>" || !tw.IsSelf(second.Message.Author) {
		t.Errorf("second echo = %+v", second.Message)
	}

	target := Message{ID: "parent-1"}
	if err := tw.Reply(ctx, "Warning: no active game", target); err != nil {
		t.Fatal(err)
	}
	if got := irc.said[2]; got.parent != "parent-1" || got.text != "Warning: no active game" {
		t.Errorf("reply = %+v", got)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() = %v, want nil after disconnect", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTwitchInboundMessages(t *testing.T) {
	tw, irc := newTestTwitch(t)
	irc.onMessage(twitch.PrivateMessage{
		Channel: "contact",
		ID:      "m1",
		Message: "**clue one**",
		User:    twitch.User{ID: "7", Name: "alice", DisplayName: "Alice"},
	})
	irc.onMessage(twitch.PrivateMessage{Channel: "elsewhere", ID: "m2", Message: "!!reset", User: twitch.User{ID: "7", Name: "alice"}})
	irc.onMessage(twitch.PrivateMessage{Channel: "contact", ID: "m3", Message: "hi", User: twitch.User{ID: "99", Name: "contactbot"}})

	ctx := context.Background()
	ev, _ := tw.Next(ctx)
	if ev.Kind != EventMessagePosted || ev.Message.Content != "<b>clue one</b>" || ev.Message.Author.Name != "Alice" {
		t.Errorf("event = %+v", ev)
	}
	ev, _ = tw.Next(ctx)
	if ev.Message.ID != "m3" || !tw.IsSelf(ev.Message.Author) {
		t.Errorf("self message = %+v", ev)
	}
	if tw.Len() != 0 {
		t.Errorf("message from another channel was queued")
	}
}

func TestTwitchIsSelfFallsBackToLogin(t *testing.T) {
	tw := newTwitch(newFakeIRC(), TwitchConfig{Channel: "c", Username: "ContactBot"}, NewMemoryPins())
	if !tw.IsSelf(User{ID: "123", Name: "contactbot"}) {
		t.Error("login match should count as self")
	}
	if tw.IsSelf(User{ID: "123", Name: "alice"}) {
		t.Error("alice is not the bot")
	}
}

func TestTwitchMarksUsePinBoard(t *testing.T) {
	pins := NewMemoryPins()
	tw := newTwitch(newFakeIRC(), TwitchConfig{Channel: "c", Username: "bot"}, pins)
	ctx := context.Background()
	m := Message{ID: "e1", Content: "1 (bob): <b>tree</b>"}
	if err := tw.Mark(ctx, m); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := pins.Get(ctx, "e1"); !ok {
		t.Fatal("mark did not pin")
	}
	if err := tw.Unmark(ctx, m); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := pins.Get(ctx, "e1"); ok {
		t.Fatal("unmark did not unpin")
	}
}

func TestTwitchLogoutClosesQueue(t *testing.T) {
	tw, irc := newTestTwitch(t)
	if err := tw.Leave(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := tw.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(irc.departed) != 1 {
		t.Errorf("departed = %v", irc.departed)
	}
	if _, err := tw.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after logout = %v", err)
	}
}

func TestTwitchSetToken(t *testing.T) {
	tw, irc := newTestTwitch(t)
	tw.SetToken("abc")
	if irc.token != "oauth:abc" {
		t.Errorf("token = %q, want oauth:abc", irc.token)
	}
	tw.SetToken("oauth:def")
	if irc.token != "oauth:def" {
		t.Errorf("token = %q, want oauth:def", irc.token)
	}
}
