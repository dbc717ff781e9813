package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/middleware"
	"fintrack/internal/services"
)

type importRequest struct {
	Source string               `json:"source"`
	Rows   []services.ImportRow `json:"rows"`
}

// ImportRows runs a best-effort batch import. Row failures do not fail
// the batch; the response carries both counts.
func (h *Handler) ImportRows(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.Rows) == 0 {
		respondError(w, http.StatusBadRequest, "rows are required")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	result, err := h.importer.ImportRows(r.Context(), userID, req.Source, req.Rows)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListImportJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	offset := 0
	if raw := query.Get("offset"); raw != "" {
		offset = parseInt(raw, 0)
	}
	jobs, err := h.imports.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load import jobs")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (h *Handler) GetImportJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	job, err := h.imports.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
