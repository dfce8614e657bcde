package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

// CategoryHandler serves the legacy global category endpoints. Not
// tenant-scoped.
type CategoryHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(catalog *service.CatalogService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, logger: logger}
}

// List handles GET /api/categorias.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// Create handles POST /api/categorias.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"nombre"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), body.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
