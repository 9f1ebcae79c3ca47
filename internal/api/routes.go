package api

import (
	"net/http"

	"github.com/whisper/board/internal/metrics"
)

// RegisterRoutes mounts the board API on mux and returns it wrapped in the
// standard middleware.
func RegisterRoutes(mux *http.ServeMux, h *Handler) http.Handler {
	// Entries
	mux.HandleFunc("POST /sessions/{sid}/entries", h.AddEntry)
	mux.HandleFunc("GET /sessions/{sid}/entries", h.ListEntries)
	mux.HandleFunc("GET /sessions/{sid}/entries/{id}", h.GetEntry)
	mux.HandleFunc("DELETE /sessions/{sid}/entries/{id}", h.DeleteEntry)

	// Presence
	mux.HandleFunc("POST /sessions/{sid}/heartbeat", h.Heartbeat)
	mux.HandleFunc("GET /sessions/{sid}/presence", h.Presence)

	// Observability
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	return Chain(
		mux,
		RecoveryMiddleware,
		LoggingMiddleware,
	)
}
