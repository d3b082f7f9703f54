package domain

import "errors"

var (
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrAlreadyDelivered = errors.New("order is already delivered")
	ErrOrderNotPaid     = errors.New("order is not paid")
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid
}

// String representation (for logging)
func (s PaymentStatus) String() string {
	return string(s)
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
)

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered
}

func (s DeliveryStatus) String() string {
	return string(s)
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid: {PaymentStatusPaid},
	PaymentStatusPaid:   {},
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:   {DeliveryStatusDelivered},
	DeliveryStatusDelivered: {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionDelivery(from, to DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
