package allocation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"venueflow/internal/api"
)

type Handlers struct {
	Engine *Engine
}

// Allocate retries allocation for an event parked at HeadApproved.
func (h Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	res, err := h.Engine.AllocateEvent(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	api.WriteJSON(w, status, res)
}

func (h Handlers) Feasibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	rep, err := h.Engine.CheckFeasibility(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rep)
}
