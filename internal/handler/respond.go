package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// respondError maps service errors to HTTP statuses. Unexpected errors are
// logged with detail and surfaced as a generic 500.
func respondError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNoGroup):
		writeError(w, http.StatusBadRequest, "No group found for this account. Create a group first.")
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("invalid id")
	}
	return id, nil
}

// pageFromQuery reads page/limit/sortField/sortOrder. limit=-1 disables
// pagination; absent values fall back to page 1 and defaultLimit.
func pageFromQuery(r *http.Request, defaultLimit int) domain.PageRequest {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && (n > 0 || n == -1) {
			limit = n
		}
	}

	return domain.PageRequest{
		Page:      page,
		Limit:     limit,
		SortField: q.Get("sortField"),
		SortOrder: q.Get("sortOrder"),
	}
}

// decodeChildCollection accepts a child collection either as a native JSON
// array or as a JSON-encoded string carrying one (the shape multipart clients
// send). Malformed input is rejected, never coerced to an empty list.
func decodeChildCollection(raw json.RawMessage, name string, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	payload := []byte(raw)
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return domain.Invalid(name + " is not valid JSON")
		}
		if inner == "" {
			return nil
		}
		payload = []byte(inner)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return domain.Invalid(name + " must be a JSON array")
	}
	return nil
}
