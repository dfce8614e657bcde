package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

// VenueHandler serves tenant-scoped venue CRUD. Lists are paginated.
type VenueHandler struct {
	catalog      *service.CatalogService
	defaultLimit int
	logger       *slog.Logger
}

// NewVenueHandler creates a new venue handler.
func NewVenueHandler(catalog *service.CatalogService, defaultLimit int, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{catalog: catalog, defaultLimit: defaultLimit, logger: logger}
}

// List handles GET /api/sedes.
func (h *VenueHandler) List(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	page := pageFromQuery(r, h.defaultLimit)
	venues, meta, err := h.catalog.ListVenues(r.Context(), access.GroupID, page)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": venues,
		"meta": meta,
	})
}

// Get handles GET /api/sedes/{id}.
func (h *VenueHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	venue, err := h.catalog.GetVenue(r.Context(), access.GroupID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

// Create handles POST /api/sedes.
func (h *VenueHandler) Create(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	var input service.VenueInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	venue, err := h.catalog.CreateVenue(r.Context(), access.GroupID, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, venue)
}

// Update handles PUT /api/sedes/{id}.
func (h *VenueHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var input service.VenueInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	venue, err := h.catalog.UpdateVenue(r.Context(), access.GroupID, id, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

// Delete handles DELETE /api/sedes/{id}. Soft delete.
func (h *VenueHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.catalog.DeleteVenue(r.Context(), access.GroupID, id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
