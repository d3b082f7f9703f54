package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published on the order events topic.
const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
)

type OrderEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Items      []OrderLine     `json:"items,omitempty"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// OrderLine identifies a purchased cart line and how many units were bought.
type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

// OrderLines keys every order item by its cart line.
func OrderLines(items []CartItem) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{ProductID: it.ProductID, Size: it.Size, Color: it.Color, Quantity: it.Quantity})
	}
	return lines
}

func (l OrderLine) Item() CartItem {
	return CartItem{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}
