package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/circuitbreaker"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/service"
	"github.com/fjod/go_cart/internal/settings"
	"go.uber.org/zap"
)

// ActionResponse is the body of every state-changing endpoint.
type ActionResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    any                  `json:"data,omitempty"`
	Code    string               `json:"code,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, ActionResponse{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ActionResponse{Success: false, Message: message, Code: code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorTable = []errorMapping{
	{cart.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{pricing.ErrInvalidDeliveryDate, http.StatusBadRequest, "invalid_delivery_date"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrPriceMismatch, http.StatusConflict, "price_mismatch"},
	{service.ErrUnknownOrder, http.StatusBadRequest, "unknown_order"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrProductNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrCartConflict, http.StatusConflict, "conflict"},
	{domain.ErrAlreadyPaid, http.StatusConflict, "illegal_transition"},
	{domain.ErrAlreadyDelivered, http.StatusConflict, "illegal_transition"},
	{domain.ErrOrderNotPaid, http.StatusConflict, "illegal_transition"},
	{payment.ErrCaptureRejected, http.StatusBadGateway, "payment_provider_error"},
	{payment.ErrProvider, http.StatusBadGateway, "payment_provider_error"},
	{settings.ErrInvalidSettings, http.StatusBadRequest, "invalid_settings"},
}

// writeServiceError maps service and domain errors to a status and code. Unknown
// errors are logged and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, ActionResponse{
			Message: "validation failed",
			Code:    "validation_failed",
			Errors:  verr.Fields,
		})
		return
	}

	if circuitbreaker.IsOpen(err) {
		respondError(w, http.StatusBadGateway, "payment_provider_error", "payment provider unavailable")
		return
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	log.Error("unhandled service error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
