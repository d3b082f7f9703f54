package pricing

import (
	"slices"
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func item(productID int64, price string, qty int) domain.CartItem {
	return domain.CartItem{ProductID: productID, Price: money(price), Quantity: qty, CountInStock: 100}
}

func address() *domain.ShippingAddress {
	return &domain.ShippingAddress{
		FullName:   "Jane Doe",
		Street:     "1 Main St",
		City:       "Springfield",
		Province:   "IL",
		PostalCode: "62701",
		Country:    "USA",
		Phone:      "555-0100",
	}
}

func newTestCalculator() *Calculator {
	return NewCalculator(money("0.10"), domain.DefaultDeliveryDates())
}

func intPtr(i int) *int { return &i }

func TestCalculate_NoAddress_ShippingAndTaxUnknown(t *testing.T) {
	c := newTestCalculator()

	p, err := c.Calculate(Input{Items: []domain.CartItem{item(1, "10.00", 2)}})
	require.NoError(t, err)

	assertMoney(t, "20.00", p.ItemsPrice)
	assert.Nil(t, p.ShippingPrice)
	assert.Nil(t, p.TaxPrice)
	assertMoney(t, "20.00", p.TotalPrice)
	assert.Empty(t, p.DeliveryDate)
}

func TestCalculate_WithAddress_NextThreeDays(t *testing.T) {
	c := newTestCalculator()

	p, err := c.Calculate(Input{
		Items:           []domain.CartItem{item(1, "10.00", 2)},
		ShippingAddress: address(),
		Delivery:        Selection{Name: "Next 3 Days"},
	})
	require.NoError(t, err)

	require.NotNil(t, p.ShippingPrice)
	require.NotNil(t, p.TaxPrice)
	assertMoney(t, "6.90", *p.ShippingPrice)
	assertMoney(t, "2.00", *p.TaxPrice)
	assertMoney(t, "28.90", p.TotalPrice)
	assert.Equal(t, 1, p.DeliveryDateIndex)
}

func TestCalculate_DefaultsToLastOption(t *testing.T) {
	c := newTestCalculator()

	p, err := c.Calculate(Input{
		Items:           []domain.CartItem{item(1, "10.00", 1)},
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Next 5 Days", p.DeliveryDate)
	assert.Equal(t, 2, p.DeliveryDateIndex)
	assertMoney(t, "4.90", *p.ShippingPrice)
}

func TestCalculate_FreeShippingThreshold(t *testing.T) {
	tests := []struct {
		name         string
		price        string
		wantShipping string
	}{
		{"below threshold", "34.99", "4.90"},
		{"at threshold", "35.00", "0.00"},
		{"above threshold", "120.00", "0.00"},
	}
	c := newTestCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Calculate(Input{
				Items:           []domain.CartItem{item(1, tt.price, 1)},
				ShippingAddress: address(),
				Delivery:        Selection{Name: "Next 5 Days"},
			})
			require.NoError(t, err)
			assertMoney(t, tt.wantShipping, *p.ShippingPrice)
		})
	}
}

func TestCalculate_ZeroMinPriceNeverFree(t *testing.T) {
	c := newTestCalculator()

	p, err := c.Calculate(Input{
		Items:           []domain.CartItem{item(1, "999.00", 1)},
		ShippingAddress: address(),
		Delivery:        Selection{Index: intPtr(0)},
	})
	require.NoError(t, err)
	assertMoney(t, "12.90", *p.ShippingPrice)
}

func TestCalculate_EmptyItems(t *testing.T) {
	c := newTestCalculator()

	p, err := c.Calculate(Input{})
	require.NoError(t, err)
	assertMoney(t, "0.00", p.ItemsPrice)
	assertMoney(t, "0.00", p.TotalPrice)
}

func TestCalculate_RoundsHalfUpAtCent(t *testing.T) {
	c := NewCalculator(money("0.05"), domain.DefaultDeliveryDates())

	p, err := c.Calculate(Input{
		Items:           []domain.CartItem{item(1, "0.25", 1)},
		ShippingAddress: address(),
		Delivery:        Selection{Name: "Tomorrow"},
	})
	require.NoError(t, err)

	// 0.25 * 0.05 = 0.0125
	assertMoney(t, "0.01", *p.TaxPrice)

	assertMoney(t, "0.13", Round(money("0.125")))
	assertMoney(t, "1.01", Round(money("1.005")))
	assertMoney(t, "2.68", ItemsPrice([]domain.CartItem{item(1, "0.335", 8)}))
}

func TestCalculate_ItemOrderDoesNotMatter(t *testing.T) {
	c := newTestCalculator()
	items := []domain.CartItem{
		item(1, "19.99", 3),
		item(2, "0.01", 7),
		item(3, "5.55", 2),
	}
	reversed := slices.Clone(items)
	slices.Reverse(reversed)

	a, err := c.Calculate(Input{Items: items, ShippingAddress: address()})
	require.NoError(t, err)
	b, err := c.Calculate(Input{Items: reversed, ShippingAddress: address()})
	require.NoError(t, err)

	assertMoney(t, "71.14", a.ItemsPrice)
	assert.True(t, a.ItemsPrice.Equal(b.ItemsPrice))
	assert.True(t, a.TotalPrice.Equal(b.TotalPrice))
}

func TestCalculate_SameInputSameOutput(t *testing.T) {
	c := newTestCalculator()
	in := Input{
		Items:           []domain.CartItem{item(1, "3.33", 3)},
		ShippingAddress: address(),
		Delivery:        Selection{Name: "Tomorrow"},
	}

	a, err := c.Calculate(in)
	require.NoError(t, err)
	b, err := c.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, a.ItemsPrice.String(), b.ItemsPrice.String())
	assert.Equal(t, a.ShippingPrice.String(), b.ShippingPrice.String())
	assert.Equal(t, a.TaxPrice.String(), b.TaxPrice.String())
	assert.Equal(t, a.TotalPrice.String(), b.TotalPrice.String())
}

func TestCalculate_InvalidDeliverySelection(t *testing.T) {
	c := newTestCalculator()
	tests := []struct {
		name string
		sel  Selection
	}{
		{"index past end", Selection{Index: intPtr(3)}},
		{"negative index", Selection{Index: intPtr(-1)}},
		{"unknown name", Selection{Name: "Yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Calculate(Input{
				Items:           []domain.CartItem{item(1, "1.00", 1)},
				ShippingAddress: address(),
				Delivery:        tt.sel,
			})
			assert.ErrorIs(t, err, ErrInvalidDeliveryDate)
		})
	}
}

func TestCalculate_NoOptionsConfigured(t *testing.T) {
	c := NewCalculator(money("0.10"), nil)

	_, err := c.Calculate(Input{ShippingAddress: address()})
	assert.ErrorIs(t, err, ErrNoDeliveryOptions)

	p, err := c.Calculate(Input{Items: []domain.CartItem{item(1, "1.00", 1)}})
	require.NoError(t, err)
	assertMoney(t, "1.00", p.TotalPrice)
}

func TestHasCents(t *testing.T) {
	assert.True(t, HasCents(money("10.5")))
	assert.True(t, HasCents(money("10.55")))
	assert.False(t, HasCents(money("10.555")))
}
