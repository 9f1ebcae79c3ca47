// Package api exposes the entry store and presence tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/whisper/board/internal/entry"
	"github.com/whisper/board/internal/messaging"
	"github.com/whisper/board/internal/metrics"
	"github.com/whisper/board/internal/moderation"
	"github.com/whisper/board/internal/presence"
	"github.com/whisper/board/internal/ratelimit"
)

// MemberHeader carries the caller's member id.
const MemberHeader = "X-Member-ID"

// maxBodyBytes bounds request bodies; entry text is capped well below this.
const maxBodyBytes = 64 << 10

// Limiter throttles writes. *ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Publisher fans events out to relays. *messaging.Client satisfies it.
type Publisher interface {
	Publish(ev messaging.Event) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	entries  *entry.Store
	presence *presence.Tracker

	// Both optional; nil disables the concern.
	limiter   Limiter
	publisher Publisher

	screen func(text string) moderation.Verdict
}

// NewHandler creates a Handler. limiter and publisher may be nil.
func NewHandler(entries *entry.Store, tracker *presence.Tracker, limiter Limiter, publisher Publisher) *Handler {
	return &Handler{
		entries:   entries,
		presence:  tracker,
		limiter:   limiter,
		publisher: publisher,
	}
}

// EnableModeration screens posted text for spam before it is stored.
func (h *Handler) EnableModeration() {
	h.screen = moderation.Screen
}

type addEntryRequest struct {
	Text       string `json:"text"`
	TTLSeconds int    `json:"ttl_seconds"`
	ImageURL   string `json:"image_url,omitempty"`
}

type addEntryResponse struct {
	entry.Entry
	TTLClamped bool `json:"ttl_clamped"`
}

type presenceResponse struct {
	OnlineCount   int     `json:"online_count"`
	WindowSeconds float64 `json:"window_seconds,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type blockedResponse struct {
	Error string `json:"error"`
	Rule  string `json:"rule"`
}

/* ---------------- POST /sessions/{sid}/entries ---------------- */

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	member := r.Header.Get(MemberHeader)
	if member == "" {
		writeError(w, http.StatusBadRequest, "missing "+MemberHeader+" header")
		return
	}

	var req addEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if !h.allow(r.Context(), ratelimit.Key(sid, member), ratelimit.RuleEntry) {
		writeError(w, http.StatusTooManyRequests, "too many entries, slow down")
		return
	}

	if h.screen != nil {
		if v := h.screen(req.Text); v.Blocked {
			metrics.EntriesTotal.WithLabelValues(metrics.EntryBlocked).Inc()
			writeJSON(w, http.StatusUnprocessableEntity, blockedResponse{Error: v.Reason, Rule: v.Rule})
			return
		}
	}

	e, clamped, err := h.entries.Add(sid, member, req.Text, req.TTLSeconds, req.ImageURL)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.publish(messaging.Event{Type: messaging.EventEntryAdded, SessionID: sid, Entry: &e})
	writeJSON(w, http.StatusCreated, addEntryResponse{Entry: e, TTLClamped: clamped})
}

/* ---------------- GET /sessions/{sid}/entries ---------------- */

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.entries.GetAll(r.PathValue("sid")))
}

/* ---------------- GET /sessions/{sid}/entries/{id} ---------------- */

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.entries.Get(r.PathValue("sid"), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

/* ---------------- DELETE /sessions/{sid}/entries/{id} ---------------- */

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	sid, id := r.PathValue("sid"), r.PathValue("id")
	if !h.entries.Delete(sid, id) {
		writeError(w, http.StatusNotFound, entry.ErrNotFound.Error())
		return
	}
	h.publish(messaging.Event{Type: messaging.EventEntryDeleted, SessionID: sid, EntryID: id})
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- POST /sessions/{sid}/heartbeat ---------------- */

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	member := r.Header.Get(MemberHeader)
	if member == "" {
		writeError(w, http.StatusBadRequest, "missing "+MemberHeader+" header")
		return
	}

	if !h.allow(r.Context(), ratelimit.Key(sid, member), ratelimit.RuleHeartbeat) {
		writeError(w, http.StatusTooManyRequests, "too many heartbeats")
		return
	}

	if err := h.presence.Track(sid, member); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count := h.presence.OnlineCount(sid)
	h.publish(messaging.Event{Type: messaging.EventPresence, SessionID: sid, OnlineCount: count})
	writeJSON(w, http.StatusOK, presenceResponse{OnlineCount: count})
}

/* ---------------- GET /sessions/{sid}/presence ---------------- */

func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presenceResponse{
		OnlineCount:   h.presence.OnlineCount(r.PathValue("sid")),
		WindowSeconds: h.presence.Window().Seconds(),
	})
}

/* ---------------- GET /health ---------------- */

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allow consults the limiter. Limiter errors have already been logged and
// the limiter fails open, so only the verdict matters here.
func (h *Handler) allow(ctx context.Context, id string, rule ratelimit.Rule) bool {
	if h.limiter == nil {
		return true
	}
	ok, _ := h.limiter.Allow(ctx, id, rule)
	return ok
}

// publish is best effort; the HTTP response never depends on it.
func (h *Handler) publish(ev messaging.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ev); err != nil {
		slog.Warn("api: publish event failed", "type", ev.Type, "session", ev.SessionID, "err", err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entry.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("api: store error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
