package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/security/audit"
	"github.com/matescarabino/gatheringTracker-server/internal/security/auth"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
)

// SyncResponse is the token-exchange answer.
type SyncResponse struct {
	User     *domain.User  `json:"user"`
	HasGroup bool          `json:"hasGroup"`
	Group    *domain.Group `json:"group,omitempty"`
}

// AuthHandler serves the auth surface: token sync, group lifecycle and join
// code validation.
type AuthHandler struct {
	authService *service.AuthService
	auditLog    *audit.Logger
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, auditLog: auditLog, logger: logger}
}

// Sync handles POST /api/auth/sync.
func (h *AuthHandler) Sync(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "bearer token required")
		return
	}

	user, group, err := h.authService.Sync(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token exchange failed")
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{User: user, HasGroup: group != nil, Group: group})
}

// CreateGroup handles POST /api/auth/groups.
func (h *AuthHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "admin identity required")
		return
	}

	var input service.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.authService.CreateGroup(r.Context(), user, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.auditLog.LogGroupChange(r.Context(), group.ID, user.ID, "create", "success", group.Name)
	writeJSON(w, http.StatusCreated, group)
}

// UpdateGroup handles PUT /api/auth/groups.
func (h *AuthHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "admin identity required")
		return
	}

	var input service.UpdateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.authService.UpdateGroup(r.Context(), user, input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.auditLog.LogGroupChange(r.Context(), group.ID, user.ID, "update", "success", group.Name)
	writeJSON(w, http.StatusOK, group)
}

// ValidateCode handles POST /api/auth/groups/validate. Public.
func (h *AuthHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"codigo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.authService.ValidateCode(r.Context(), body.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Group code not found")
			return
		}
		respondError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"groupName": group.Name,
		"codigo":    group.Code,
	})
}
