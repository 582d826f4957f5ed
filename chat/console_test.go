package chat

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConsoleInputAndOutput(t *testing.T) {
	var out bytes.Buffer
	pins := NewMemoryPins()
	in := strings.NewReader("alice: !!start a\nnonsense\nbob: **tree**\n")
	c := NewConsole("ContactBot", in, &out, pins)
	ctx := context.Background()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	ev, _ := c.Next(ctx)
	if ev.Message.Content != "!!start a" || ev.Message.Author.Name != "alice" {
		t.Errorf("first event = %+v", ev.Message)
	}
	ev, _ = c.Next(ctx)
	if ev.Message.Content != "<b>tree</b>" || c.IsSelf(ev.Message.Author) {
		t.Errorf("second event = %+v", ev.Message)
	}
	if !strings.Contains(out.String(), `expected "name: message"`) {
		t.Errorf("missing parse warning in %q", out.String())
	}

	if err := c.Broadcast(ctx, "alice defending **A**"); err != nil {
		t.Fatal(err)
	}
	ev, _ = c.Next(ctx)
	if !c.IsSelf(ev.Message.Author) || ev.Message.Content != "alice defending <b>A</b>" {
		t.Errorf("echo = %+v", ev.Message)
	}
	if !strings.Contains(out.String(), "[ContactBot] alice defending **A**") {
		t.Errorf("broadcast not written: %q", out.String())
	}
}

func TestConsoleUnpinInjectsStarRemoval(t *testing.T) {
	var out bytes.Buffer
	pins := NewMemoryPins()
	ctx := context.Background()
	echoed := Message{ID: "e1", Author: User{ID: "contactbot", Name: "ContactBot"}, Content: "1 (bob): <b>tree</b>"}
	_ = pins.Pin(ctx, echoed)

	c := NewConsole("ContactBot", strings.NewReader("/unpin e1\n/unpin nope\n"), &out, pins)
	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}
	ev, _ := c.Next(ctx)
	if ev.Kind != EventStarToggled || ev.Starred || ev.Message.ID != "e1" {
		t.Errorf("event = %+v", ev)
	}
	if !strings.Contains(out.String(), "no pinned message nope") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConsoleLogout(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole("bot", strings.NewReader(""), &out, NewMemoryPins())
	ctx := context.Background()
	if err := c.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Broadcast(ctx, "late"); err == nil {
		t.Error("Broadcast after logout should fail")
	}
}

func TestConsoleRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	c := NewConsole("bot", pr, io.Discard, NewMemoryPins())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	if _, err := io.WriteString(pw, "alice: !!help\n"); err != nil {
		t.Fatal(err)
	}
	ev, err := c.Next(ctx)
	if err != nil || ev.Message.Content != "!!help" {
		t.Fatalf("Next() = %+v, %v", ev.Message, err)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
