package pricing

import (
	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// Round rounds to the cent, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func ItemsPrice(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return Round(sum)
}

// HasCents reports whether d carries at most two decimal places.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}
