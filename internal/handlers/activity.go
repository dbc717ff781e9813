package handlers

import (
	"net/http"

	"fintrack/internal/middleware"
	"fintrack/internal/store"
)

// ListActivity returns the caller's audit trail, newest first.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)
	rows, err := h.audit.ListByActor(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load activity")
		return
	}
	if rows == nil {
		rows = []store.AuditLog{}
	}
	respondJSON(w, http.StatusOK, rows)
}
