package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/contact-bot/markup"
)

// TwitchConfig configures the IRC session.
type TwitchConfig struct {
	Channel  string
	Username string
	// Token is the bot's user access token, with or without the "oauth:" prefix.
	Token string
	// UserID is the bot's Twitch user id when known; otherwise identity falls
	// back to comparing logins.
	UserID string
}

// ircClient is the subset of *twitch.Client the transport uses.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Depart(channel string)
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
	Connect() error
	Disconnect() error
	SetIRCToken(token string)
}

// Twitch is a Transport and Source backed by Twitch IRC.
type Twitch struct {
	*Queue
	client    ircClient
	channel   string
	self      User
	pins      PinBoard
	connected atomic.Bool
}

// NewTwitch builds the transport. Call Run to connect.
func NewTwitch(cfg TwitchConfig, pins PinBoard) *Twitch {
	return newTwitch(twitch.NewClient(cfg.Username, ircToken(cfg.Token)), cfg, pins)
}

func ircToken(token string) string {
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

// SetToken swaps the access token used on the next (re)connect.
func (t *Twitch) SetToken(token string) {
	t.client.SetIRCToken(ircToken(token))
}

func newTwitch(client ircClient, cfg TwitchConfig, pins PinBoard) *Twitch {
	selfID := cfg.UserID
	if selfID == "" {
		selfID = strings.ToLower(cfg.Username)
	}
	t := &Twitch{
		Queue:   NewQueue(),
		client:  client,
		channel: strings.ToLower(strings.TrimPrefix(cfg.Channel, "#")),
		self:    User{ID: selfID, Name: cfg.Username},
		pins:    pins,
	}
	client.OnConnect(func() {
		t.connected.Store(true)
		slog.Info("twitch chat connected", slog.String("channel", t.channel))
	})
	client.OnPrivateMessage(t.onPrivateMessage)
	return t
}

func (t *Twitch) onPrivateMessage(msg twitch.PrivateMessage) {
	if !strings.EqualFold(msg.Channel, t.channel) {
		return
	}
	name := msg.User.DisplayName
	if name == "" {
		name = msg.User.Name
	}
	author := User{ID: msg.User.ID, Name: name}
	if t.IsSelf(User{ID: msg.User.ID, Name: msg.User.Name}) {
		author = t.self
	}
	t.Inject(Posted(Message{
		ID:      msg.ID,
		Author:  author,
		Content: markup.Render(msg.Message),
		Sent:    msg.Time.UTC(),
	}))
}

// Run joins the channel and blocks until ctx is done or the session ends.
func (t *Twitch) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.client.Disconnect()
		case <-done:
		}
	}()

	t.client.Join(t.channel)
	err := t.client.Connect()
	t.connected.Store(false)
	if errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	return err
}

// Connected reports whether the IRC session is up.
func (t *Twitch) Connected() bool { return t.connected.Load() }

// IsSelf matches by user id, falling back to the login for ids that could
// not be resolved at startup.
func (t *Twitch) IsSelf(u User) bool {
	if u.ID != "" && u.ID == t.self.ID {
		return true
	}
	return u.Name != "" && strings.EqualFold(u.Name, t.self.Name)
}

func (t *Twitch) Broadcast(_ context.Context, text string) error {
	if !t.Connected() {
		return deliveryErr("broadcast", ErrNotConnected)
	}
	for _, l := range lines(text) {
		t.client.Say(t.channel, l)
		t.Inject(echo(t.self, l))
	}
	return nil
}

func (t *Twitch) Reply(_ context.Context, text string, target Message) error {
	if !t.Connected() {
		return deliveryErr("reply", ErrNotConnected)
	}
	for _, l := range lines(text) {
		t.client.Reply(t.channel, target.ID, l)
		t.Inject(echo(t.self, l))
	}
	return nil
}

func (t *Twitch) Mark(ctx context.Context, m Message) error {
	if err := t.pins.Pin(ctx, m); err != nil {
		return deliveryErr("mark", err)
	}
	return nil
}

func (t *Twitch) Unmark(ctx context.Context, m Message) error {
	if err := t.pins.Unpin(ctx, m.ID); err != nil {
		return deliveryErr("unmark", err)
	}
	return nil
}

func (t *Twitch) Leave(_ context.Context) error {
	t.client.Depart(t.channel)
	return nil
}

// Logout ends the IRC session and closes the event queue.
func (t *Twitch) Logout(_ context.Context) error {
	t.Close()
	t.connected.Store(false)
	if err := t.client.Disconnect(); err != nil {
		// Already disconnected; nothing left to end.
		slog.Debug("twitch disconnect", slog.Any("err", err))
	}
	return nil
}
