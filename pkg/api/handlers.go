package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/orchestrator"
)

// StatusProvider is satisfied by *orchestrator.Orchestrator; narrowed to an
// interface so this package depends on the methods it actually calls
// rather than the whole orchestrator surface.
type StatusProvider interface {
	Status(ctx context.Context) orchestrator.Status
	LastErrorKind() (errkind.Kind, bool)
}

// Handler serves the health and status endpoints over the running
// orchestrator's live component state.
type Handler struct {
	status StatusProvider
	log    *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(status StatusProvider, log *logger.Logger) *Handler {
	return &Handler{status: status, log: log}
}

// Health returns a plain liveness check: the process is up and serving.
// @Summary Health check
// @Description Liveness check for the evmsync process
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	if kind, ok := h.status.LastErrorKind(); ok {
		resp.LastErrorKind = kind.String()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status returns every configured network's chain tip and every configured
// source's dispatch position.
// @Summary Pipeline status
// @Description Per-network chain tip and per-source dispatch position
// @Tags Status
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /api/v1/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.status.Status(r.Context())

	resp := StatusResponse{
		Networks: make([]NetworkStatusResponse, len(snapshot.Networks)),
		Sources:  make([]SourceStatusResponse, len(snapshot.Sources)),
	}
	for i, n := range snapshot.Networks {
		resp.Networks[i] = NetworkStatusResponse{
			Name:         n.Name,
			ChainID:      n.ChainID,
			FinalizedTip: n.FinalizedTip,
			TipKnown:     n.TipKnown,
		}
	}
	for i, s := range snapshot.Sources {
		resp.Sources[i] = SourceStatusResponse{
			Name:               s.Name,
			Network:            s.Network,
			LastCompletedBlock: s.LastCompletedBlock,
			Healthy:            s.Healthy,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}
