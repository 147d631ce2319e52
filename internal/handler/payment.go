package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keyvend/keyvend/internal/service"
)

// PaymentHandler handles payment intent endpoints.
type PaymentHandler struct {
	logger   *slog.Logger
	payments *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(logger *slog.Logger, payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		logger:   logger,
		payments: payments,
	}
}

type createPaymentRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// CreatePayment handles POST /api/v1/payments.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	intent, err := h.payments.CreatePayment(r.Context(), req.UserID, req.Username)
	if err != nil {
		h.logger.Error("failed to create payment",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create payment")
		return
	}

	writeJSON(w, http.StatusCreated, intent)
}

type checkPaymentResponse struct {
	Reference string `json:"reference"`
	Paid      bool   `json:"paid"`
	UserID    string `json:"user_id,omitempty"`
	NewLimit  int    `json:"new_limit,omitempty"`
}

// CheckPayment handles POST /api/v1/payments/{reference}/check.
// It verifies the transfer on chain and, when confirmed, converts it
// into a permanent limit increase.
func (h *PaymentHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	result, paid, err := h.payments.CheckAndReconcile(r.Context(), reference)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Unknown payment reference")
			return
		}
		h.logger.Error("failed to check payment",
			slog.String("reference", reference),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "CHECK_FAILED", "Payment verification is temporarily unavailable")
		return
	}

	resp := checkPaymentResponse{Reference: reference, Paid: paid}
	if paid {
		resp.UserID = result.UserID
		resp.NewLimit = result.NewLimit
	}
	writeJSON(w, http.StatusOK, resp)
}
