package consumer

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
	"go.uber.org/zap"
)

// CartPruner is satisfied by *service.CartService.
type CartPruner interface {
	RemovePurchased(ctx context.Context, userID, orderID string, lines []domain.OrderLine) (*domain.Cart, error)
}

// CartConsumer takes the bought lines out of the buyer's cart once their order is
// placed. Lines added after checkout stay, as do address, payment method and
// delivery choice.
type CartConsumer struct {
	loop
	carts CartPruner
}

func NewCartConsumer(reader MessageReader, carts CartPruner, log *zap.Logger) *CartConsumer {
	c := &CartConsumer{carts: carts}
	c.loop = loop{name: "cart", reader: reader, handler: c.handle, log: log}
	return c
}

func (c *CartConsumer) Run(ctx context.Context) { c.run(ctx) }

func (c *CartConsumer) Close() { c.close() }

func (c *CartConsumer) handle(ctx context.Context, eventType string, ev domain.OrderEvent) error {
	if eventType != domain.EventOrderCreated {
		return nil
	}
	if ev.UserID == "" {
		return skip("order %s has no user_id", ev.OrderID)
	}
	if len(ev.Items) == 0 {
		return skip("order %s carries no items", ev.OrderID)
	}

	if _, err := c.carts.RemovePurchased(ctx, ev.UserID, ev.OrderID, ev.Items); err != nil {
		return err
	}
	c.log.Info("purchased lines removed from cart",
		zap.String("user_id", ev.UserID), zap.String("order_id", ev.OrderID))
	return nil
}
