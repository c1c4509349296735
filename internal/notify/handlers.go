package notify

import (
	"net/http"
	"strconv"

	"venueflow/internal/api"
)

type Handlers struct {
	Inbox *Inbox
}

// List returns the caller's latest in-app notifications.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor := api.ActorFromContext(r.Context())
	if actor == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	items, err := h.Inbox.List(r.Context(), actor.UserID, limit)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
