package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryOption is a named shipping tier. Shipping is free when FreeShippingMinPrice
// is positive and the items price reaches it.
type DeliveryOption struct {
	Name                 string          `bson:"name" json:"name"`
	DaysToDeliver        int             `bson:"days_to_deliver" json:"daysToDeliver"`
	ShippingPrice        decimal.Decimal `bson:"shipping_price" json:"shippingPrice"`
	FreeShippingMinPrice decimal.Decimal `bson:"free_shipping_min_price" json:"freeShippingMinPrice"`
}

type Settings struct {
	TaxRate       decimal.Decimal  `bson:"tax_rate" json:"taxRate"`
	Currency      string           `bson:"currency" json:"currency"`
	DeliveryDates []DeliveryOption `bson:"delivery_dates" json:"deliveryDates"`
	UpdatedAt     time.Time        `bson:"updated_at" json:"updatedAt"`
}

// DefaultDeliveryDates is the stock option list; the last entry is the default.
func DefaultDeliveryDates() []DeliveryOption {
	return []DeliveryOption{
		{
			Name:                 "Tomorrow",
			DaysToDeliver:        1,
			ShippingPrice:        decimal.RequireFromString("12.90"),
			FreeShippingMinPrice: decimal.Zero,
		},
		{
			Name:                 "Next 3 Days",
			DaysToDeliver:        3,
			ShippingPrice:        decimal.RequireFromString("6.90"),
			FreeShippingMinPrice: decimal.Zero,
		},
		{
			Name:                 "Next 5 Days",
			DaysToDeliver:        5,
			ShippingPrice:        decimal.RequireFromString("4.90"),
			FreeShippingMinPrice: decimal.RequireFromString("35"),
		},
	}
}
