package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/service"
	"github.com/keyvend/keyvend/internal/store"
)

// KeyHandler handles user registration and key endpoints.
type KeyHandler struct {
	logger *slog.Logger
	store  *store.Store
	keys   *service.KeyService
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(logger *slog.Logger, st *store.Store, keys *service.KeyService) *KeyHandler {
	return &KeyHandler{
		logger: logger,
		store:  st,
		keys:   keys,
	}
}

type registerUserRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// RegisterUser handles POST /api/v1/users.
// Registration is idempotent: re-registering refreshes the username
// and touches nothing else.
func (h *KeyHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	if err := h.store.EnsureUser(r.Context(), req.UserID, req.Username); err != nil {
		h.logger.Error("failed to register user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id":  req.UserID,
		"username": req.Username,
	})
}

type issueKeyRequest struct {
	Username string `json:"username"`
}

type issuedKeyResponse struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
	Used       int       `json:"used"`
	Limit      int       `json:"limit"`
}

// IssueKey handles POST /api/v1/users/{user_id}/keys.
func (h *KeyHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req issueKeyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	issued, err := h.keys.IssueKey(r.Context(), userID, req.Username)
	if err != nil {
		var limitErr *service.LimitExceededError
		if errors.As(err, &limitErr) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": map[string]any{
					"code":    "LIMIT_EXCEEDED",
					"message": limitErr.Error(),
					"limit":   limitErr.Limit,
					"used":    limitErr.Used,
				},
			})
			return
		}
		h.logger.Error("failed to issue key",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue key")
		return
	}

	writeJSON(w, http.StatusCreated, issuedKeyResponse{
		ID:         issued.Key.ID,
		Key:        issued.Key.Credential,
		ValidUntil: issued.Key.ValidUntil,
		CreatedAt:  issued.Key.CreatedAt,
		Used:       issued.Used,
		Limit:      issued.Limit,
	})
}

type listKeysResponse struct {
	Keys []model.ListedKey `json:"keys"`
}

// ListKeys handles GET /api/v1/users/{user_id}/keys.
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	keys, err := h.keys.ListKeys(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list keys",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys")
		return
	}

	writeJSON(w, http.StatusOK, listKeysResponse{Keys: keys})
}

type limitResponse struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Used   int    `json:"used"`
}

// Limit handles GET /api/v1/users/{user_id}/limit.
func (h *KeyHandler) Limit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	limit, used, err := h.keys.Limit(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to compute limit",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute limit")
		return
	}

	writeJSON(w, http.StatusOK, limitResponse{UserID: userID, Limit: limit, Used: used})
}
