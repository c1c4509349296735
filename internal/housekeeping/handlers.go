package housekeeping

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"venueflow/internal/api"
)

type Handlers struct {
	Service *Service
	// ProvisionalTTL is the default age after which provisional holds expire.
	ProvisionalTTL time.Duration
}

func (h Handlers) Release(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	released, err := h.Service.ReleaseResourcesForEvent(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"released": released})
}

type CleanupRequest struct {
	// Cutoff is optional; it defaults to now minus the provisional TTL.
	Cutoff *time.Time `json:"cutoff"`
}

func (h Handlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
			return
		}
	}
	cutoff := h.Service.Now().Add(-h.ProvisionalTTL)
	if req.Cutoff != nil {
		cutoff = *req.Cutoff
	}

	released, err := h.Service.CleanupStaleProvisionalBookings(r.Context(), cutoff)
	if err != nil {
		api.WriteAppError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"released": released, "cutoff": cutoff})
}
