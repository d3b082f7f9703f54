package consumer

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/notify"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

// Claimer is satisfied by *cache.Deduplicator.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, order *domain.Order) error
}

const (
	receiptSent    = "sent"
	receiptSkipped = "duplicate"
	receiptFailed  = "failed"
)

// ReceiptConsumer mails one receipt per paid order. Send failures are logged and
// the message is still committed; they never reach the payment caller.
type ReceiptConsumer struct {
	loop
	orders  OrderReader
	claims  Claimer
	sender  ReceiptSender
	metrics *metrics.ServerMetrics
}

func NewReceiptConsumer(reader MessageReader, orders OrderReader, claims Claimer, sender ReceiptSender, m *metrics.ServerMetrics, log *zap.Logger) *ReceiptConsumer {
	c := &ReceiptConsumer{orders: orders, claims: claims, sender: sender, metrics: m}
	c.loop = loop{name: "receipt", reader: reader, handler: c.handle, log: log}
	return c
}

func (c *ReceiptConsumer) Run(ctx context.Context) { c.run(ctx) }

func (c *ReceiptConsumer) Close() { c.close() }

func (c *ReceiptConsumer) handle(ctx context.Context, eventType string, ev domain.OrderEvent) error {
	if eventType != domain.EventOrderPaid {
		return nil
	}
	orderID, err := uuid.Parse(ev.OrderID)
	if err != nil {
		return skip("invalid order_id %q", ev.OrderID)
	}

	order, err := c.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return skip("order %s not found", orderID)
	}
	if err != nil {
		return err
	}

	claimed, err := c.claims.Claim(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if !claimed {
		c.metrics.Receipt(receiptSkipped)
		c.log.Info("receipt already sent", zap.String("order_id", ev.OrderID))
		return nil
	}

	if err := c.sender.SendReceipt(ctx, order); err != nil {
		if relErr := c.claims.Release(ctx, ev.OrderID); relErr != nil {
			c.log.Warn("failed to release receipt claim", zap.String("order_id", ev.OrderID), zap.Error(relErr))
		}
		c.metrics.Receipt(receiptFailed)
		if errors.Is(err, notify.ErrNoRecipient) {
			return skip("order %s: %v", orderID, err)
		}
		c.log.Error("failed to send receipt", zap.String("order_id", ev.OrderID), zap.Error(err))
		return nil
	}

	c.metrics.Receipt(receiptSent)
	return nil
}
