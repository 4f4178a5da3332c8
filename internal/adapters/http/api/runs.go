package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/formguide/internal/domain/types"
)

// RunsDependencies defines the interface for run listings.
type RunsDependencies interface {
	Runs(ctx context.Context, limit int) ([]types.RunSummary, error)
}

// RunsHandler handles run listing requests.
type RunsHandler struct {
	deps     RunsDependencies
	maxLimit int
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies, maxLimit int) *RunsHandler {
	return &RunsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetRuns handles GET /runs?limit=N requests. limit defaults to the cap.
func (h *RunsHandler) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_runs"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := h.maxLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, ErrBadRequest))
			return
		}
		if h.maxLimit > 0 && v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", Wrap(op, ErrBadRequest))
			return
		}
		n = v
	}
	runs, err := h.deps.Runs(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if runs == nil {
		runs = []types.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}
