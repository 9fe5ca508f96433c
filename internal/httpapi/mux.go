package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bbw200-gateway/internal/display"
	"bbw200-gateway/internal/utils"
)

// Board is the part of the display board the API needs.
type Board interface {
	Snapshot(ctx context.Context) (display.State, error)
	SetCloudEnabled(bool) error
}

// StatsFunc reports gateway counters for GET /api/v1/stats.
type StatsFunc func() any

type handlers struct {
	board Board
	stats StatsFunc
}

func NewMux(board Board, stats StatsFunc) *http.ServeMux {
	h := &handlers{board: board, stats: stats}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/v1/display", h.handleDisplay)
	mux.HandleFunc("PUT /api/v1/cloud", h.handleCloud)
	mux.HandleFunc("GET /api/v1/stats", h.handleStats)
	return mux
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleDisplay(w http.ResponseWriter, r *http.Request) {
	h.writeSnapshot(w, r)
}

type cloudRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *handlers) handleCloud(w http.ResponseWriter, r *http.Request) {
	var req cloudRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		utils.WriteError(w, http.StatusBadRequest, `missing "enabled"`)
		return
	}

	if err := h.board.SetCloudEnabled(*req.Enabled); err != nil {
		slog.Error("failed to set cloud toggle", "error", err)
		utils.WriteError(w, statusFor(err), "failed to set cloud toggle")
		return
	}
	slog.Info("cloud upload toggled", "enabled", *req.Enabled, "source", "http")
	h.writeSnapshot(w, r)
}

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		utils.WriteJSON(w, http.StatusOK, map[string]any{})
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.stats())
}

func (h *handlers) writeSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.board.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to read display state", "error", err)
		utils.WriteError(w, statusFor(err), "failed to read display state")
		return
	}
	utils.WriteJSON(w, http.StatusOK, s)
}

func statusFor(err error) int {
	if errors.Is(err, display.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
