package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

// FoodHandler serves tenant-scoped food CRUD.
type FoodHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewFoodHandler creates a new food handler.
func NewFoodHandler(catalog *service.CatalogService, logger *slog.Logger) *FoodHandler {
	return &FoodHandler{catalog: catalog, logger: logger}
}

// List handles GET /api/comidas.
func (h *FoodHandler) List(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	foods, err := h.catalog.ListFoods(r.Context(), access.GroupID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if foods == nil {
		foods = []*domain.Food{}
	}
	writeJSON(w, http.StatusOK, foods)
}

// Get handles GET /api/comidas/{id}.
func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	food, err := h.catalog.GetFood(r.Context(), access.GroupID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}

// Create handles POST /api/comidas.
func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	var input service.FoodInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	food, err := h.catalog.CreateFood(r.Context(), access.GroupID, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, food)
}

// Update handles PUT /api/comidas/{id}.
func (h *FoodHandler) Update(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var input service.FoodInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	food, err := h.catalog.UpdateFood(r.Context(), access.GroupID, id, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}

// Delete handles DELETE /api/comidas/{id}. Soft delete.
func (h *FoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := h.catalog.DeleteFood(r.Context(), access.GroupID, id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
