package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/security/audit"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

const maxUploadBytes = 10 << 20

// GatheringHandler serves the gathering aggregate endpoints plus statistics.
// Writes accept JSON bodies or multipart forms carrying a photo file.
type GatheringHandler struct {
	gatherings   *service.GatheringService
	auditLog     *audit.Logger
	uploadDir    string
	defaultLimit int
	logger       *slog.Logger
}

// NewGatheringHandler creates a new gathering handler.
func NewGatheringHandler(gatherings *service.GatheringService, auditLog *audit.Logger, uploadDir string, defaultLimit int, logger *slog.Logger) *GatheringHandler {
	return &GatheringHandler{
		gatherings:   gatherings,
		auditLog:     auditLog,
		uploadDir:    uploadDir,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// List handles GET /api/juntadas.
func (h *GatheringHandler) List(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	page := pageFromQuery(r, h.defaultLimit)
	views, meta, err := h.gatherings.List(r.Context(), access.GroupID, page)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": meta,
	})
}

// Get handles GET /api/juntadas/{id}.
func (h *GatheringHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	view, err := h.gatherings.Get(r.Context(), access.GroupID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create handles POST /api/juntadas.
func (h *GatheringHandler) Create(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	input, err := h.decodeInput(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	view, err := h.gatherings.Create(r.Context(), access.GroupID, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.auditLog.LogGatheringChange(r.Context(), access.GroupID, auditUser(access), "create", strconv.FormatInt(view.ID, 10), "success", "")
	writeJSON(w, http.StatusCreated, view)
}

// Update handles PUT /api/juntadas/{id}.
func (h *GatheringHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	input, err := h.decodeInput(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	view, err := h.gatherings.Update(r.Context(), access.GroupID, id, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.auditLog.LogGatheringChange(r.Context(), access.GroupID, auditUser(access), "update", strconv.FormatInt(id, 10), "success", "")
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api/juntadas/{id}. Soft delete.
func (h *GatheringHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.gatherings.Delete(r.Context(), access.GroupID, id); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.auditLog.LogGatheringChange(r.Context(), access.GroupID, auditUser(access), "delete", strconv.FormatInt(id, 10), "success", "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Statistics handles GET /api/estadisticas: every gathering ascending by
// date with full child collections.
func (h *GatheringHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.AccessFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "group scope required")
		return
	}

	views, err := h.gatherings.Statistics(r.Context(), access.GroupID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// gatheringBody is the JSON write payload. Child collections come as native
// arrays or JSON-encoded strings.
type gatheringBody struct {
	Fecha       string          `json:"fecha"`
	IDSede      int64           `json:"idSede"`
	FotoJuntada string          `json:"fotoJuntada"`
	Detalles    json.RawMessage `json:"detalles"`
	Asistencias json.RawMessage `json:"asistencias"`
}

// decodeInput normalizes JSON and multipart bodies into one typed input.
func (h *GatheringHandler) decodeInput(r *http.Request) (service.GatheringInput, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return h.decodeMultipart(r)
	}

	var body gatheringBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.GatheringInput{}, domain.Invalid("invalid request body")
	}
	return h.buildInput(body)
}

func (h *GatheringHandler) decodeMultipart(r *http.Request) (service.GatheringInput, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return service.GatheringInput{}, domain.Invalid("invalid multipart body")
	}

	body := gatheringBody{
		Fecha:       r.FormValue("fecha"),
		FotoJuntada: r.FormValue("fotoJuntada"),
	}
	if v := r.FormValue("idSede"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return service.GatheringInput{}, domain.Invalid("idSede must be a number")
		}
		body.IDSede = id
	}
	if v := r.FormValue("detalles"); v != "" {
		body.Detalles = json.RawMessage(strconv.Quote(v))
	}
	if v := r.FormValue("asistencias"); v != "" {
		body.Asistencias = json.RawMessage(strconv.Quote(v))
	}

	if file, header, err := r.FormFile("fotoJuntada"); err == nil {
		defer file.Close()
		path, err := h.saveUpload(file, header.Filename)
		if err != nil {
			return service.GatheringInput{}, err
		}
		body.FotoJuntada = path
	}

	return h.buildInput(body)
}

func (h *GatheringHandler) buildInput(body gatheringBody) (service.GatheringInput, error) {
	date, err := parseDate(body.Fecha)
	if err != nil {
		return service.GatheringInput{}, err
	}

	input := service.GatheringInput{
		Date:    date,
		VenueID: body.IDSede,
		Photo:   body.FotoJuntada,
	}
	if err := decodeChildCollection(body.Detalles, "detalles", &input.FoodLines); err != nil {
		return service.GatheringInput{}, err
	}
	if err := decodeChildCollection(body.Asistencias, "asistencias", &input.Attendances); err != nil {
		return service.GatheringInput{}, err
	}
	return input, nil
}

// saveUpload stores a multipart photo under a fresh name and returns its
// public path.
func (h *GatheringHandler) saveUpload(file io.Reader, original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return "", domain.Invalid("unsupported photo format")
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxUploadBytes)); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return "/uploads/" + name, nil
}

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.Invalid("fecha is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.Invalid("fecha must be an ISO date")
}

func auditUser(access domain.Access) string {
	if access.User != nil {
		return access.User.ID
	}
	return "guest"
}
