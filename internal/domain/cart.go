package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	FullName   string `bson:"full_name" json:"fullName" validate:"required,min=3"`
	Street     string `bson:"street" json:"street" validate:"required,min=3"`
	City       string `bson:"city" json:"city" validate:"required"`
	Province   string `bson:"province" json:"province" validate:"required"`
	PostalCode string `bson:"postal_code" json:"postalCode" validate:"required"`
	Country    string `bson:"country" json:"country" validate:"required"`
	Phone      string `bson:"phone" json:"phone" validate:"required"`
}

// CartItem is one cart line. Price and CountInStock are snapshots taken when the
// line was added and are not refreshed afterwards.
type CartItem struct {
	ProductID    int64           `bson:"product_id" json:"product"`
	ClientID     string          `bson:"client_id" json:"clientId" validate:"required"`
	Name         string          `bson:"name" json:"name" validate:"required"`
	Slug         string          `bson:"slug" json:"slug" validate:"required"`
	Category     string          `bson:"category" json:"category" validate:"required"`
	Image        string          `bson:"image" json:"image"`
	Price        decimal.Decimal `bson:"price" json:"price" validate:"money"`
	CountInStock int             `bson:"count_in_stock" json:"countInStock" validate:"gte=0"`
	Quantity     int             `bson:"quantity" json:"quantity" validate:"gt=0"`
	Size         string          `bson:"size,omitempty" json:"size,omitempty"`
	Color        string          `bson:"color,omitempty" json:"color,omitempty"`
}

// SameLine reports whether two items occupy the same cart line (product, color and size).
func (i CartItem) SameLine(other CartItem) bool {
	return i.ProductID == other.ProductID && i.Color == other.Color && i.Size == other.Size
}

type Cart struct {
	ID              string           `bson:"_id,omitempty" json:"-"`
	UserID          string           `bson:"user_id" json:"userId"`
	Items           []CartItem       `bson:"items" json:"items"`
	ShippingAddress *ShippingAddress `bson:"shipping_address,omitempty" json:"shippingAddress,omitempty"`
	PaymentMethod   string           `bson:"payment_method,omitempty" json:"paymentMethod,omitempty"`
	DeliveryDate    string           `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`

	// PurchasedOrders lists recent orders whose lines were already taken out of the cart.
	PurchasedOrders []string `bson:"purchased_orders,omitempty" json:"-"`

	ItemsPrice    decimal.Decimal  `bson:"items_price" json:"itemsPrice"`
	ShippingPrice *decimal.Decimal `bson:"shipping_price,omitempty" json:"shippingPrice"`
	TaxPrice      *decimal.Decimal `bson:"tax_price,omitempty" json:"taxPrice"`
	TotalPrice    decimal.Decimal  `bson:"total_price" json:"totalPrice"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so snapshots never share backing arrays or pointers.
func (c Cart) Clone() Cart {
	out := c
	out.Items = slices.Clone(c.Items)
	out.PurchasedOrders = slices.Clone(c.PurchasedOrders)
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	if c.ShippingPrice != nil {
		v := *c.ShippingPrice
		out.ShippingPrice = &v
	}
	if c.TaxPrice != nil {
		v := *c.TaxPrice
		out.TaxPrice = &v
	}
	return out
}

// IndexOf returns the position of the line matching item, or -1.
func (c Cart) IndexOf(item CartItem) int {
	return slices.IndexFunc(c.Items, item.SameLine)
}
