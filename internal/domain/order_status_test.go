package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionPayment(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"unpaid to paid", PaymentStatusUnpaid, PaymentStatusPaid, true},
		{"paid to paid", PaymentStatusPaid, PaymentStatusPaid, false},
		{"paid to unpaid", PaymentStatusPaid, PaymentStatusUnpaid, false},
		{"unpaid to unpaid", PaymentStatusUnpaid, PaymentStatusUnpaid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionPayment(tt.from, tt.to))
		})
	}
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.True(t, PaymentStatusPaid.IsTerminal())
	assert.False(t, PaymentStatusUnpaid.IsTerminal())
	assert.True(t, DeliveryStatusDelivered.IsTerminal())
}

func TestOrder_MarkPaid_KeepsFirstPaidAt(t *testing.T) {
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := &Order{}

	require.NoError(t, o.MarkPaid(&PaymentResult{ID: "ch_1", Status: "succeeded"}, first))
	err := o.MarkPaid(&PaymentResult{ID: "ch_2"}, first.Add(time.Hour))

	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, first, *o.PaidAt)
	assert.Equal(t, "ch_1", o.PaymentResult.ID)
}

func TestOrder_MarkDelivered(t *testing.T) {
	now := time.Now()
	o := &Order{}

	assert.ErrorIs(t, o.MarkDelivered(now), ErrOrderNotPaid)

	require.NoError(t, o.MarkPaid(nil, now))
	require.NoError(t, o.MarkDelivered(now))
	assert.True(t, o.IsDelivered)
	assert.ErrorIs(t, o.MarkDelivered(now), ErrAlreadyDelivered)
}
