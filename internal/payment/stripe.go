package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

var (
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrMalformedEvent   = errors.New("malformed stripe event")
)

// zeroDecimalCurrencies are charged in whole units. Stripe sends every other
// currency in cents.
var zeroDecimalCurrencies = []string{
	"bif", "clp", "djf", "gnf", "jpy", "kmf", "krw", "mga",
	"pyg", "rwf", "ugx", "vnd", "vuv", "xaf", "xof", "xpf",
}

// StripeVerifier checks webhook signatures with the endpoint secret.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: tolerance}
}

// ConstructEvent verifies the signature header against payload and decodes the event.
func (v *StripeVerifier) ConstructEvent(payload []byte, header string) (*stripe.Event, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return &ev, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// ChargeFromEvent decodes the charge carried by a charge.* event.
func ChargeFromEvent(ev *stripe.Event) (*stripe.Charge, error) {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, ev.ID)
	}
	var charge stripe.Charge
	if err := json.Unmarshal(ev.Data.Raw, &charge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &charge, nil
}

// ChargeOrderID is the order id the storefront put into the charge metadata.
func ChargeOrderID(charge *stripe.Charge) string {
	return charge.Metadata["orderId"]
}

func ChargeResult(charge *stripe.Charge) *domain.PaymentResult {
	email := charge.ReceiptEmail
	if charge.BillingDetails != nil && charge.BillingDetails.Email != "" {
		email = charge.BillingDetails.Email
	}
	return &domain.PaymentResult{
		ID:           charge.ID,
		Status:       string(charge.Status),
		EmailAddress: email,
		PricePaid:    AmountFromMinorUnits(charge.Amount, string(charge.Currency)),
	}
}

// AmountFromMinorUnits converts a Stripe amount into the currency's major unit.
func AmountFromMinorUnits(amount int64, currency string) decimal.Decimal {
	if slices.Contains(zeroDecimalCurrencies, strings.ToLower(currency)) {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
