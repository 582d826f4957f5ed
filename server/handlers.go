package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/game"
	"github.com/onnwee/contact-bot/telemetry"
)

// Handlers serves the API routes.
type Handlers struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHealthz responds to liveness probes. The process is alive as long as
// it can answer.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports whether the bot can referee a game right now.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"bot", func() error {
			if h.deps.Bot.Stopped() {
				return errors.New("bot has shut down")
			}
			return nil
		}},
		{"chat", func() error {
			if h.deps.Connected != nil && !h.deps.Connected() {
				return errors.New("chat session not connected")
			}
			return nil
		}},
		{"database", func() error {
			if h.deps.DB == nil {
				return nil
			}
			return h.deps.DB.PingContext(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Game      game.Snapshot `json:"game"`
	Connected *bool         `json:"chat_connected,omitempty"`
	Pins      int           `json:"pins"`
}

// HandleStatus returns the game snapshot and pin count.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Game: h.deps.Bot.Snapshot()}
	if h.deps.Connected != nil {
		c := h.deps.Connected()
		resp.Connected = &c
	}
	pins, err := h.deps.Pins.List(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list pins", slog.Any("err", err))
		http.Error(w, "pin board unavailable", http.StatusInternalServerError)
		return
	}
	resp.Pins = len(pins)
	writeJSON(w, http.StatusOK, resp)
}

// HandlePinsList returns every pinned message, oldest first.
func (h *Handlers) HandlePinsList(w http.ResponseWriter, r *http.Request) {
	pins, err := h.deps.Pins.List(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list pins", slog.Any("err", err))
		http.Error(w, "pin board unavailable", http.StatusInternalServerError)
		return
	}
	if pins == nil {
		pins = []chat.Pin{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pins": pins})
}

// HandlePinDelete reports that a moderator took their star off a pinned
// message. The bot decides what to unpin when it handles the event.
func (h *Handlers) HandlePinDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, ok, err := h.deps.Pins.Get(r.Context(), id)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("get pin", slog.String("id", id), slog.Any("err", err))
		http.Error(w, "pin board unavailable", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no pinned message "+id, http.StatusNotFound)
		return
	}
	h.deps.Events.Inject(chat.StarRemoved(m))
	telemetry.LoggerWithCorr(r.Context()).Info("star removal queued", slog.String("id", id), slog.String("component", "http"))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "message_id": id})
}
