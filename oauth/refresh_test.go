package oauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/contact-bot/db"
)

type memStore struct {
	mu      sync.Mutex
	tokens  map[string]db.Token
	failPut error
}

func newMemStore(toks ...db.Token) *memStore {
	s := &memStore{tokens: map[string]db.Token{}}
	for _, t := range toks {
		s.tokens[t.Provider] = t
	}
	return s
}

func (s *memStore) GetOAuthToken(_ context.Context, provider string) (db.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[provider]
	if !ok {
		return db.Token{}, db.ErrNoToken
	}
	return t, nil
}

func (s *memStore) UpsertOAuthToken(_ context.Context, tok db.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	s.tokens[tok.Provider] = tok
	return nil
}

func TestCheckSkipsTokenOutsideWindow(t *testing.T) {
	store := newMemStore(db.Token{Provider: "twitch", AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)})
	called := false
	r := &Refresher{Store: store, Provider: "twitch", Window: 30 * time.Minute, Refresh: func(context.Context, string) (db.Token, error) {
		called = true
		return db.Token{}, nil
	}}

	refreshed, err := r.Check(context.Background())
	if err != nil || refreshed || called {
		t.Errorf("Check() = %v, %v; refresh called = %v", refreshed, err, called)
	}
}

func TestCheckRefreshesWithinWindow(t *testing.T) {
	store := newMemStore(db.Token{Provider: "twitch", AccessToken: "old-access", RefreshToken: "old-refresh", Expiry: time.Now().Add(5 * time.Minute), Scope: "chat:read"})
	newExpiry := time.Now().Add(2 * time.Hour)
	var seen db.Token
	r := &Refresher{
		Store:    store,
		Provider: "twitch",
		Window:   15 * time.Minute,
		Refresh: func(_ context.Context, rt string) (db.Token, error) {
			if rt != "old-refresh" {
				t.Errorf("refresh called with %q, want old-refresh", rt)
			}
			return db.Token{AccessToken: "new-access", Expiry: newExpiry}, nil
		},
		OnRefresh: func(tok db.Token) { seen = tok },
	}

	refreshed, err := r.Check(context.Background())
	if err != nil || !refreshed {
		t.Fatalf("Check() = %v, %v", refreshed, err)
	}
	got, _ := store.GetOAuthToken(context.Background(), "twitch")
	if got.AccessToken != "new-access" || !got.Expiry.Equal(newExpiry) {
		t.Errorf("stored = %+v", got)
	}
	if got.RefreshToken != "old-refresh" || got.Scope != "chat:read" {
		t.Errorf("empty refresh token/scope should keep previous values: %+v", got)
	}
	if seen.AccessToken != "new-access" {
		t.Errorf("OnRefresh got %+v", seen)
	}
}

func TestCheckErrors(t *testing.T) {
	due := db.Token{Provider: "twitch", RefreshToken: "rt", Expiry: time.Now()}
	boom := errors.New("boom")

	t.Run("refresh fails", func(t *testing.T) {
		r := &Refresher{Store: newMemStore(due), Provider: "twitch", Refresh: func(context.Context, string) (db.Token, error) {
			return db.Token{}, boom
		}}
		if _, err := r.Check(context.Background()); !errors.Is(err, boom) {
			t.Errorf("Check() = %v, want boom", err)
		}
	})

	t.Run("persist fails", func(t *testing.T) {
		store := newMemStore(due)
		store.failPut = boom
		r := &Refresher{Store: store, Provider: "twitch", Refresh: func(context.Context, string) (db.Token, error) {
			return db.Token{AccessToken: "x"}, nil
		}}
		if _, err := r.Check(context.Background()); !errors.Is(err, boom) {
			t.Errorf("Check() = %v, want boom", err)
		}
	})

	t.Run("no token stored", func(t *testing.T) {
		r := &Refresher{Store: newMemStore(), Provider: "twitch"}
		if refreshed, err := r.Check(context.Background()); refreshed || err != nil {
			t.Errorf("Check() = %v, %v", refreshed, err)
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		r := &Refresher{Store: newMemStore(db.Token{Provider: "twitch", AccessToken: "at"}), Provider: "twitch"}
		if refreshed, err := r.Check(context.Background()); refreshed || err != nil {
			t.Errorf("Check() = %v, %v", refreshed, err)
		}
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	store := newMemStore(db.Token{Provider: "twitch", RefreshToken: "rt", Expiry: time.Now()})
	r := &Refresher{
		Store:    store,
		Provider: "twitch",
		Interval: 20 * time.Millisecond,
		Refresh: func(context.Context, string) (db.Token, error) {
			calls.Add(1)
			return db.Token{AccessToken: "at", Expiry: time.Now()}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if calls.Load() == 0 {
		t.Error("refresh never ran")
	}
}
