package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keyvend/keyvend/internal/service"
)

// AdminHandler handles privileged user management endpoints.
type AdminHandler struct {
	logger *slog.Logger
	admin  *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logger *slog.Logger, admin *service.AdminService) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		admin:  admin,
	}
}

type findUserRequest struct {
	Query string `json:"query"`
}

// FindUser handles POST /api/v1/admin/users/find.
// The query is either a numeric user id or a username, with or without
// a leading @.
func (h *AdminHandler) FindUser(w http.ResponseWriter, r *http.Request) {
	var req findUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	query, err := service.ParseQuery(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "query must be a user id or username")
		return
	}

	summary, err := h.admin.FindUser(r.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "No user matches the query")
			return
		}
		h.logger.Error("failed to find user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to find user")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type setLimitRequest struct {
	Limit *int `json:"limit"`
}

// SetManualLimit handles PUT /api/v1/admin/users/{user_id}/limit.
func (h *AdminHandler) SetManualLimit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req setLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Limit == nil || *req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
		return
	}

	summary, err := h.admin.SetManualLimit(r.Context(), userID, *req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "Unknown user id")
			return
		}
		h.logger.Error("failed to set manual limit",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to set limit")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
