// Package webhook receives WAHA event callbacks, filters what is not a
// real user text message, and hands the rest to the pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/pipeline"
)

// messageHandler is the slice of the pipeline the webhook needs.
type messageHandler interface {
	Handle(ctx context.Context, in pipeline.Inbound)
}

// Event is the WAHA callback envelope.
type Event struct {
	Event   string  `json:"event"`
	Session string  `json:"session"`
	Payload Payload `json:"payload"`
}

// Payload is the message body of a WAHA "message" event.
type Payload struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromMe   bool   `json:"fromMe"`
	Body     string `json:"body"`
	HasMedia bool   `json:"hasMedia"`
}

// Handler serves the webhook and health endpoints.
type Handler struct {
	pipe    messageHandler
	session string
	seen    *seenCache
	logger  log.Logger
}

// New creates a Handler bound to one WAHA session name. Events from other
// sessions are dropped.
func New(pipe messageHandler, session string, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{
		pipe:    pipe,
		session: session,
		seen:    newSeenCache(512),
		logger:  logger,
	}
}

// Routes returns the HTTP routes of the service.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook", h.handleWebhook)
	r.Get("/health", h.handleHealth)
	return r
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respond(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if status := h.guard(ev); status != "" {
		respond(w, http.StatusOK, status)
		return
	}

	in := pipeline.Inbound{
		SessionID: ev.Payload.From,
		ChatID:    ev.Payload.From,
		Body:      ev.Payload.Body,
	}

	// The callback must return fast; WAHA retries slow webhooks. The
	// request context dies with this handler, so processing gets its own.
	go h.pipe.Handle(context.Background(), in)

	respond(w, http.StatusOK, "accepted")
}

// guard returns a non-empty drop status for events that must not reach
// the pipeline.
func (h *Handler) guard(ev Event) string {
	if ev.Event != "message" {
		return "ignored_event"
	}
	if ev.Payload.FromMe {
		return "ignored_self"
	}
	chatID := ev.Payload.From
	switch {
	case strings.Contains(chatID, "@g.us"):
		return "ignored_group"
	case strings.Contains(chatID, "@newsletter"):
		return "ignored_newsletter"
	case strings.Contains(chatID, "status@broadcast"):
		return "ignored_broadcast"
	}
	if h.session != "" && ev.Session != h.session {
		return "ignored_other_session"
	}
	if strings.TrimSpace(ev.Payload.Body) == "" {
		// Media without a caption, stickers, reactions.
		return "ignored_no_text"
	}
	if ev.Payload.ID != "" && !h.seen.Add(ev.Payload.ID) {
		return "ignored_duplicate"
	}
	return ""
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, "ok")
}

func respond(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
