// Package api provides the HTTP ingress for the relay: the fire-and-forget
// endpoints used by the browser extension, and run-history queries.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/applyflow/agent-relay/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Broadcaster fans an event out to all connected dashboard observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, data any)
}

// RunLister reads archived run history.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)
}

// Handler serves the HTTP ingress routes.
type Handler struct {
	bc   Broadcaster
	runs RunLister // optional
}

// NewHandler creates an ingress handler. runs may be nil if history is disabled.
func NewHandler(bc Broadcaster, runs RunLister) *Handler {
	return &Handler{
		bc:   bc,
		runs: runs,
	}
}

// RegisterRoutes mounts the ingress routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/start-agent", h.handleStartAgent)
	r.Post("/progress", h.handleProgress)
	r.Get("/runs", h.handleListRuns)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// handleStartAgent relays a start signal from a client that cannot hold a
// socket open (the browser extension). It does not create a session itself;
// it broadcasts the signal so a connected dashboard can treat it as a new
// run. Broadcasting to zero observers is a successful no-op.
func (h *Handler) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	var cmd domain.StartAgentCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.bc.Broadcast(r.Context(), domain.EventStartAgent, cmd)

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Agent start signal relayed",
	})
}

// handleProgress relays an arbitrary progress payload verbatim.
func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.bc.Broadcast(r.Context(), domain.EventProgressUpdate, payload)

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Progress relayed",
	})
}

// handleListRuns returns archived run history, newest first.
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		JSON(w, http.StatusOK, []*domain.RunRecord{})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			Error(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.RunRecord{}
	}
	JSON(w, http.StatusOK, runs)
}
