package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func signStripe(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testStripeSecret,
		Timestamp: time.Now(),
	}).Header
}

// stripeRequest signs payload with the test secret unless header is given.
func stripeRequest(t *testing.T, payload []byte, header string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header == "" {
		header = signStripe(payload)
	}
	req.Header.Set(payment.StripeSignatureHeader, header)
	return req
}

func TestStripeWebhook_ChargeSucceeded(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.payments.order = &domain.Order{ID: id, IsPaid: true}
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{"id":"ch_1","amount":2890,"currency":"usd",` +
		`"metadata":{"orderId":"` + id.String() + `"},"billing_details":{"email":"ada@example.com"}}}}`)

	rec := api.do(stripeRequest(t, payload, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAction(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, id.String())
	assert.Equal(t, "evt_1", api.payments.lastEventID)
	require.NotNil(t, api.payments.lastCharge)
	assert.Equal(t, id.String(), payment.ChargeOrderID(api.payments.lastCharge))
	assert.Equal(t, int64(2890), api.payments.lastCharge.Amount)
	assert.Equal(t, "ada@example.com", api.payments.lastCharge.BillingDetails.Email)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	api := newTestAPI(t)
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)

	rec := api.do(stripeRequest(t, payload, "t=1,v1=deadbeef"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", decodeAction(t, rec).Code)
	assert.Zero(t, api.payments.chargeCalls)
}

func TestStripeWebhook_TamperedPayload(t *testing.T) {
	api := newTestAPI(t)
	header := signStripe([]byte(`{"id":"evt_1","type":"charge.succeeded"}`))

	rec := api.do(stripeRequest(t, []byte(`{"id":"evt_2","type":"charge.succeeded"}`), header))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, api.payments.chargeCalls)
}

func TestStripeWebhook_Malformed(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(stripeRequest(t, []byte(`{"type":"charge.succeeded"}`), ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed_event", decodeAction(t, rec).Code)
}

func TestStripeWebhook_ChargeWithoutData(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(stripeRequest(t, []byte(`{"id":"evt_3","type":"charge.succeeded"}`), ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed_event", decodeAction(t, rec).Code)
	assert.Zero(t, api.payments.chargeCalls)
}

func TestStripeWebhook_OtherEventIgnored(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(stripeRequest(t, []byte(`{"id":"evt_9","type":"customer.created"}`), ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, api.payments.chargeCalls)
}

func TestStripeWebhook_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown order", service.ErrUnknownOrder, http.StatusBadRequest},
		{"storage failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.payments.err = tt.err

			rec := api.do(stripeRequest(t, []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{"id":"ch_1"}}}`), ""))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}
