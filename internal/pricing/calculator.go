package pricing

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDeliveryDate = errors.New("invalid delivery date")
	ErrNoDeliveryOptions   = errors.New("no delivery options configured")
)

// Selection picks a delivery option. Name wins over Index; an empty selection
// means the default (last) option.
type Selection struct {
	Name  string
	Index *int
}

type Input struct {
	Items           []domain.CartItem
	ShippingAddress *domain.ShippingAddress
	Delivery        Selection
}

// Prices holds the derived money fields. ShippingPrice and TaxPrice are nil until
// a shipping address is known.
type Prices struct {
	ItemsPrice    decimal.Decimal
	ShippingPrice *decimal.Decimal
	TaxPrice      *decimal.Decimal
	TotalPrice    decimal.Decimal

	DeliveryDate      string
	DeliveryDateIndex int
}

type Calculator struct {
	taxRate decimal.Decimal
	options []domain.DeliveryOption
}

func NewCalculator(taxRate decimal.Decimal, options []domain.DeliveryOption) *Calculator {
	return &Calculator{
		taxRate: taxRate,
		options: append([]domain.DeliveryOption(nil), options...),
	}
}

func FromSettings(s domain.Settings) *Calculator {
	return NewCalculator(s.TaxRate, s.DeliveryDates)
}

func (c *Calculator) Options() []domain.DeliveryOption {
	return append([]domain.DeliveryOption(nil), c.options...)
}

func (c *Calculator) Calculate(in Input) (Prices, error) {
	out := Prices{
		ItemsPrice:        ItemsPrice(in.Items),
		DeliveryDateIndex: -1,
	}

	hasSelection := in.Delivery.Name != "" || in.Delivery.Index != nil
	if in.ShippingAddress == nil && !hasSelection {
		out.TotalPrice = out.ItemsPrice
		return out, nil
	}

	idx, err := c.resolve(in.Delivery)
	if err != nil {
		return Prices{}, err
	}
	option := c.options[idx]
	out.DeliveryDate = option.Name
	out.DeliveryDateIndex = idx

	if in.ShippingAddress == nil {
		out.TotalPrice = out.ItemsPrice
		return out, nil
	}

	shipping := option.ShippingPrice
	if option.FreeShippingMinPrice.IsPositive() && out.ItemsPrice.GreaterThanOrEqual(option.FreeShippingMinPrice) {
		shipping = decimal.Zero
	}
	shipping = Round(shipping)
	tax := Round(out.ItemsPrice.Mul(c.taxRate))

	out.ShippingPrice = &shipping
	out.TaxPrice = &tax
	out.TotalPrice = Round(out.ItemsPrice.Add(shipping).Add(tax))
	return out, nil
}

// Resolve returns the option a selection points to.
func (c *Calculator) Resolve(sel Selection) (domain.DeliveryOption, int, error) {
	idx, err := c.resolve(sel)
	if err != nil {
		return domain.DeliveryOption{}, -1, err
	}
	return c.options[idx], idx, nil
}

func (c *Calculator) resolve(sel Selection) (int, error) {
	if len(c.options) == 0 {
		return -1, ErrNoDeliveryOptions
	}
	if sel.Name != "" {
		for i, o := range c.options {
			if o.Name == sel.Name {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: unknown option %q", ErrInvalidDeliveryDate, sel.Name)
	}
	if sel.Index != nil {
		if *sel.Index < 0 || *sel.Index >= len(c.options) {
			return -1, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidDeliveryDate, *sel.Index, len(c.options))
		}
		return *sel.Index, nil
	}
	return len(c.options) - 1, nil
}
