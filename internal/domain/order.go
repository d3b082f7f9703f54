package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentMethodPayPal = "PayPal"
	PaymentMethodStripe = "Stripe"
	PaymentMethodCOD    = "Cash On Delivery"
)

// PaymentResult is the provider confirmation normalized across Stripe and PayPal.
type PaymentResult struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	EmailAddress string          `json:"email_address"`
	PricePaid    decimal.Decimal `json:"pricePaid"`
}

type Order struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user" validate:"required"`

	Items           []CartItem      `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`

	ExpectedDeliveryDate time.Time      `json:"expectedDeliveryDate" validate:"future"`
	DeliveryDate         string         `json:"deliveryDate" validate:"required"`
	PaymentMethod        string         `json:"paymentMethod" validate:"required"`
	PaymentResult        *PaymentResult `json:"paymentResult,omitempty"`

	ItemsPrice    decimal.Decimal `json:"itemsPrice" validate:"money"`
	ShippingPrice decimal.Decimal `json:"shippingPrice" validate:"money"`
	TaxPrice      decimal.Decimal `json:"taxPrice" validate:"money"`
	TotalPrice    decimal.Decimal `json:"totalPrice" validate:"money"`

	IsPaid      bool       `json:"isPaid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	IsDelivered bool       `json:"isDelivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (o *Order) PaymentStatus() PaymentStatus {
	if o.IsPaid {
		return PaymentStatusPaid
	}
	return PaymentStatusUnpaid
}

func (o *Order) DeliveryStatus() DeliveryStatus {
	if o.IsDelivered {
		return DeliveryStatusDelivered
	}
	return DeliveryStatusPending
}

// MarkPaid moves the order to paid. It fails on an order that is already paid so a
// replayed confirmation never touches PaidAt.
func (o *Order) MarkPaid(result *PaymentResult, at time.Time) error {
	if !CanTransitionPayment(o.PaymentStatus(), PaymentStatusPaid) {
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &at
	if result != nil {
		o.PaymentResult = result
	}
	return nil
}

func (o *Order) MarkDelivered(at time.Time) error {
	if !o.IsPaid {
		return ErrOrderNotPaid
	}
	if !CanTransitionDelivery(o.DeliveryStatus(), DeliveryStatusDelivered) {
		return ErrAlreadyDelivered
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	return nil
}
