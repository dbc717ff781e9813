package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/errs"
	"fintrack/internal/middleware"
	"fintrack/internal/store"
	"fintrack/internal/validator"
)

type categoryRequest struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	ParentID *string `json:"parent_id"`
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateCategoryType(req.Type); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ParentID != nil {
		parent, err := h.categories.GetByID(r.Context(), userID, *req.ParentID)
		if err != nil {
			handleError(w, err)
			return
		}
		if parent.Type != req.Type {
			respondError(w, http.StatusBadRequest, "parent category has a different type")
			return
		}
	}
	categoryID := uuid.NewString()
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.categories.Create(r.Context(), tx, store.CategoryInput{
			ID:       categoryID,
			UserID:   userID,
			Name:     req.Name,
			Type:     req.Type,
			ParentID: req.ParentID,
		}); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "category_create", "category", categoryID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create category")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": categoryID})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	categories, err := h.categories.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	category, err := h.categories.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

// GetCategoryDescendants returns the full subtree rooted at the
// category, the id itself included.
func (h *Handler) CategoryDescendants(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	categoryID := chi.URLParam(r, "id")
	if _, err := h.categories.GetByID(r.Context(), userID, categoryID); err != nil {
		handleError(w, err)
		return
	}
	ids, err := h.categories.GetWithDescendants(r.Context(), userID, categoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to walk category tree")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

type categoryUpdateRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req categoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	categoryID := chi.URLParam(r, "id")
	category, err := h.categories.GetByID(r.Context(), userID, categoryID)
	if err != nil {
		handleError(w, err)
		return
	}
	if req.Name != nil {
		if err := validator.ValidateName(*req.Name); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := h.categories.GetByID(r.Context(), userID, *req.ParentID)
		if err != nil {
			handleError(w, err)
			return
		}
		if parent.Type != category.Type {
			respondError(w, http.StatusBadRequest, "parent category has a different type")
			return
		}
		// Re-parenting under the category's own subtree would close a
		// cycle and break every descendant walk.
		subtree, err := h.categories.GetWithDescendants(r.Context(), userID, categoryID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to walk category tree")
			return
		}
		for _, id := range subtree {
			if id == *req.ParentID {
				respondError(w, http.StatusBadRequest, "parent cannot be a descendant of the category")
				return
			}
		}
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.categories.Update(r.Context(), tx, userID, categoryID, req.Name, req.ParentID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "category_update", "category", categoryID, "{}")
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": categoryID})
}

// DeleteCategory blocks while transactions or a budget still reference
// the category; subcategories block deletion too.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	categoryID := chi.URLParam(r, "id")
	if _, err := h.categories.GetByID(r.Context(), userID, categoryID); err != nil {
		handleError(w, err)
		return
	}
	subtree, err := h.categories.GetWithDescendants(r.Context(), userID, categoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to walk category tree")
		return
	}
	if len(subtree) > 1 {
		respondError(w, http.StatusConflict, "category has subcategories")
		return
	}
	count, err := h.transactions.CountByCategory(r.Context(), userID, categoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check category references")
		return
	}
	if count > 0 {
		respondError(w, http.StatusConflict, "category has transactions")
		return
	}
	if _, err := h.budgets.GetByCategory(r.Context(), userID, categoryID); err == nil {
		respondError(w, http.StatusConflict, "category has a budget")
		return
	} else if !errs.IsNotFound(err) {
		respondError(w, http.StatusInternalServerError, "unable to check category budget")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.categories.Delete(r.Context(), tx, userID, categoryID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "category_delete", "category", categoryID, "{}")
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": categoryID})
}
