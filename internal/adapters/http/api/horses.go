package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/formguide/internal/domain/types"
)

// HorseDependencies defines the interface for horse history lookups.
type HorseDependencies interface {
	HorseHistory(ctx context.Context, horseID string) ([]types.HorseRun, error)
}

// HorseHandler handles horse history requests.
type HorseHandler struct {
	deps HorseDependencies
}

// NewHorseHandler creates a new horse handler.
func NewHorseHandler(deps HorseDependencies) *HorseHandler {
	return &HorseHandler{deps: deps}
}

// HandleGetHorse handles GET /horses/{id} requests.
func (h *HorseHandler) HandleGetHorse(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_horse"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/horses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, ErrBadRequest))
		return
	}
	runs, err := h.deps.HorseHistory(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, horseResponse{HorseID: id, Runs: runs})
}
