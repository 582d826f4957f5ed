package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/contact-bot/markup"
)

// Console is a Transport and Source over a line protocol, for local play.
//
// Input lines are "name: text" (text is chat markdown), or "/unpin <id>" to
// take the star off a pinned message. Output is written to out, one line per
// posted message.
type Console struct {
	*Queue
	self User
	in   io.Reader
	pins PinBoard

	mu     sync.Mutex
	out    io.Writer
	online bool
}

// NewConsole builds a console session for a bot called botName.
func NewConsole(botName string, in io.Reader, out io.Writer, pins PinBoard) *Console {
	return &Console{
		Queue:  NewQueue(),
		self:   User{ID: strings.ToLower(botName), Name: botName},
		in:     in,
		out:    out,
		pins:   pins,
		online: true,
	}
}

// Run reads input until EOF or ctx is done. The queue stays open so echoes
// of the last inputs are still delivered; Logout closes it.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case l := <-lines:
			c.handleLine(ctx, l)
		}
	}
}

func (c *Console) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if id, ok := strings.CutPrefix(line, "/unpin "); ok {
		m, found, err := c.pins.Get(ctx, strings.TrimSpace(id))
		if err != nil || !found {
			c.printf("! no pinned message %s", id)
			return
		}
		c.Inject(StarRemoved(m))
		return
	}
	name, text, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		c.printf("! expected \"name: message\"")
		return
	}
	c.Inject(Posted(Message{
		ID:      uuid.NewString(),
		Author:  User{ID: strings.ToLower(name), Name: name},
		Content: markup.Render(strings.TrimSpace(text)),
		Sent:    time.Now().UTC(),
	}))
}

func (c *Console) IsSelf(u User) bool { return u.ID == c.self.ID }

func (c *Console) Broadcast(_ context.Context, text string) error {
	return c.post("", text)
}

func (c *Console) Reply(_ context.Context, text string, target Message) error {
	return c.post("@"+target.Author.Name+" ", text)
}

func (c *Console) post(prefix, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.online {
		return deliveryErr("post", ErrNotConnected)
	}
	for _, l := range lines(text) {
		if _, err := fmt.Fprintf(c.out, "[%s] %s%s\n", c.self.Name, prefix, l); err != nil {
			return deliveryErr("post", err)
		}
		c.Inject(echo(c.self, prefix+l))
	}
	return nil
}

func (c *Console) Mark(ctx context.Context, m Message) error {
	if err := c.pins.Pin(ctx, m); err != nil {
		return deliveryErr("mark", err)
	}
	c.printf("* pinned %s: %s", m.ID, markup.Format(m.Content))
	return nil
}

func (c *Console) Unmark(ctx context.Context, m Message) error {
	if err := c.pins.Unpin(ctx, m.ID); err != nil {
		return deliveryErr("unmark", err)
	}
	c.printf("* unpinned %s", m.ID)
	return nil
}

func (c *Console) Leave(_ context.Context) error {
	c.printf("* %s left the room", c.self.Name)
	return nil
}

func (c *Console) Logout(_ context.Context) error {
	c.mu.Lock()
	c.online = false
	c.mu.Unlock()
	c.Close()
	return nil
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}
