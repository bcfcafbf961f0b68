// Package api provides the status, probe and health endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/go-chi/chi/v5"
)

// AgentStatus is the subset of agent.Client used by the status endpoints.
type AgentStatus interface {
	Status() agent.ConnectionStatus
	Identity() (agent.Identity, bool)
	TestConnection(ctx context.Context) agent.ProbeResult
}

var _ AgentStatus = (*agent.Client)(nil)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusHandler serves the connection status and probe endpoints.
type StatusHandler struct {
	agent AgentStatus
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(a AgentStatus) *StatusHandler {
	return &StatusHandler{agent: a}
}

type statusResponse struct {
	agent.ConnectionStatus
	Identity *agent.Identity `json:"identity,omitempty"`
}

// Status returns the connection status and, when connected, the caller identity.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{ConnectionStatus: h.agent.Status()}
	if id, ok := h.agent.Identity(); ok {
		resp.Identity = &id
	}
	JSON(w, http.StatusOK, resp)
}

// Test runs the connection probe.
func (h *StatusHandler) Test(w http.ResponseWriter, r *http.Request) {
	result := h.agent.TestConnection(r.Context())
	if result.Success {
		slog.Info("Connection probe succeeded")
	} else {
		slog.Warn("Connection probe failed",
			"type", result.Error.Type,
			"category", result.Error.Category.String(),
			"error", result.Error.RawMessage)
	}
	JSON(w, http.StatusOK, result)
}

// RegisterRoutes registers the status routes.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
	r.Post("/api/status/test", h.Test)
}
