package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

// PersonHandler serves tenant-scoped person CRUD.
type PersonHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewPersonHandler creates a new person handler.
func NewPersonHandler(catalog *service.CatalogService, logger *slog.Logger) *PersonHandler {
	return &PersonHandler{catalog: catalog, logger: logger}
}

// List handles GET /api/personas.
func (h *PersonHandler) List(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	persons, err := h.catalog.ListPersons(r.Context(), access.GroupID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if persons == nil {
		persons = []*domain.Person{}
	}
	writeJSON(w, http.StatusOK, persons)
}

// Get handles GET /api/personas/{id}.
func (h *PersonHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	person, err := h.catalog.GetPerson(r.Context(), access.GroupID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// Create handles POST /api/personas.
func (h *PersonHandler) Create(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	var input service.PersonInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	person, err := h.catalog.CreatePerson(r.Context(), access.GroupID, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

// Update handles PUT /api/personas/{id}.
func (h *PersonHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var input service.PersonInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	person, err := h.catalog.UpdatePerson(r.Context(), access.GroupID, id, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// Delete handles DELETE /api/personas/{id}. Soft delete.
func (h *PersonHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.catalog.DeletePerson(r.Context(), access.GroupID, id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
