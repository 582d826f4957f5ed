package chat

import (
	"context"
	"slices"
	"sync"
	"time"
)

// PinBoard stores the messages the bot has marked.
type PinBoard interface {
	Pin(ctx context.Context, m Message) error
	// Unpin removes the pin for id. Unpinning an unknown id is not an error.
	Unpin(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Message, bool, error)
	List(ctx context.Context) ([]Pin, error)
}

// Pin is a marked message and when it was marked.
type Pin struct {
	Message  Message   `json:"message"`
	PinnedAt time.Time `json:"pinned_at"`
}

// MemoryPins is an in-process PinBoard.
type MemoryPins struct {
	mu   sync.Mutex
	pins map[string]Pin
}

// NewMemoryPins returns an empty board.
func NewMemoryPins() *MemoryPins {
	return &MemoryPins{pins: make(map[string]Pin)}
}

func (p *MemoryPins) Pin(_ context.Context, m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pins[m.ID]; ok {
		return nil
	}
	p.pins[m.ID] = Pin{Message: m, PinnedAt: time.Now().UTC()}
	return nil
}

func (p *MemoryPins) Unpin(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pins, id)
	return nil
}

func (p *MemoryPins) Get(_ context.Context, id string) (Message, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[id]
	return pin.Message, ok, nil
}

// List returns pins oldest first.
func (p *MemoryPins) List(_ context.Context) ([]Pin, error) {
	p.mu.Lock()
	out := make([]Pin, 0, len(p.pins))
	for _, pin := range p.pins {
		out = append(out, pin)
	}
	p.mu.Unlock()
	slices.SortFunc(out, func(a, b Pin) int {
		if c := a.PinnedAt.Compare(b.PinnedAt); c != 0 {
			return c
		}
		if a.Message.ID < b.Message.ID {
			return -1
		}
		if a.Message.ID > b.Message.ID {
			return 1
		}
		return 0
	})
	return out, nil
}
