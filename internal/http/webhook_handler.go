package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/service"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// EventVerifier is satisfied by *payment.StripeVerifier.
type EventVerifier interface {
	ConstructEvent(payload []byte, header string) (*stripe.Event, error)
}

type ChargeConfirmer interface {
	ConfirmStripeCharge(ctx context.Context, eventID string, charge *stripe.Charge) (*domain.Order, error)
}

type WebhookHandler struct {
	verifier EventVerifier
	payments ChargeConfirmer
	log      *zap.Logger
}

func NewWebhookHandler(verifier EventVerifier, payments ChargeConfirmer, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, payments: payments, log: log}
}

// POST /api/v1/webhooks/stripe
//
// Signature and unknown-order failures answer 400 so Stripe stops retrying;
// storage failures answer 500 so it redelivers.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "cannot read body")
		return
	}

	event, err := h.verifier.ConstructEvent(payload, r.Header.Get(payment.StripeSignatureHeader))
	if err != nil {
		logger.Warn(r.Context(), h.log, "stripe webhook rejected", zap.Error(err))
		code := "invalid_signature"
		if errors.Is(err, payment.ErrMalformedEvent) {
			code = "malformed_event"
		}
		respondError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	if event.Type != stripe.EventTypeChargeSucceeded {
		w.WriteHeader(http.StatusOK)
		return
	}

	charge, err := payment.ChargeFromEvent(event)
	if err != nil {
		logger.Warn(r.Context(), h.log, "stripe charge unreadable", zap.String("event_id", event.ID), zap.Error(err))
		respondError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	order, err := h.payments.ConfirmStripeCharge(r.Context(), event.ID, charge)
	switch {
	case err == nil:
		respondOK(w, http.StatusOK, "order "+order.ID.String()+" paid", nil)
	case errors.Is(err, service.ErrUnknownOrder):
		logger.Warn(r.Context(), h.log, "stripe charge for unknown order",
			zap.String("event_id", event.ID), zap.Error(err))
		respondError(w, http.StatusBadRequest, "unknown_order", err.Error())
	default:
		logger.Error(r.Context(), h.log, "stripe charge not applied",
			zap.String("event_id", event.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "payment not recorded")
	}
}
