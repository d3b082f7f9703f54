package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
	ProviderManual = "manual"
)

type PayPalGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*payment.PayPalCapture, error)
}

type SettingsSource interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// PaymentService moves orders through the payment and delivery axes. Every provider
// confirmation is keyed by its event id so replays are no-ops.
type PaymentService struct {
	orders   repository.OrderRepository
	paypal   PayPalGateway
	settings SettingsSource
	metrics  *metrics.ServerMetrics
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentService(orders repository.OrderRepository, paypal PayPalGateway, settings SettingsSource, m *metrics.ServerMetrics, log *zap.Logger) *PaymentService {
	return &PaymentService{
		orders:   orders,
		paypal:   paypal,
		settings: settings,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// ConfirmStripeCharge applies a verified charge.succeeded event. An unknown or
// missing order id yields ErrUnknownOrder and changes nothing.
func (s *PaymentService) ConfirmStripeCharge(ctx context.Context, eventID string, charge *stripe.Charge) (*domain.Order, error) {
	orderID, err := uuid.Parse(payment.ChargeOrderID(charge))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, payment.ChargeOrderID(charge))
	}

	order, err := s.apply(ctx, orderID, repository.PaymentUpdate{
		EventID:  ProviderStripe + ":" + eventID,
		Provider: ProviderStripe,
		Result:   payment.ChargeResult(charge),
		PaidAt:   s.now(),
	})
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return order, err
}

// CreatePayPalOrder opens a PayPal order for the order total and remembers its id.
func (s *PaymentService) CreatePayPalOrder(ctx context.Context, userID string, orderID uuid.UUID) (string, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	if order.IsPaid {
		return "", domain.ErrAlreadyPaid
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	paypalID, err := s.paypal.CreateOrder(ctx, order.TotalPrice, cfg.Currency)
	if err != nil {
		return "", err
	}

	err = s.orders.SetPaymentResult(ctx, orderID, domain.PaymentResult{ID: paypalID, Status: "CREATED"})
	if err != nil {
		return "", err
	}

	logger.Info(ctx, s.log, "paypal order created",
		zap.String("order_id", orderID.String()), zap.String("paypal_order_id", paypalID))
	return paypalID, nil
}

// CapturePayPal captures the PayPal order and marks the order paid when the capture
// is COMPLETED and belongs to the PayPal order created for it.
func (s *PaymentService) CapturePayPal(ctx context.Context, userID string, orderID uuid.UUID, paypalOrderID string) (*domain.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return order, nil
	}
	if order.PaymentResult == nil || order.PaymentResult.ID != paypalOrderID {
		return nil, fmt.Errorf("%w: paypal order %q does not belong to order %s", payment.ErrCaptureRejected, paypalOrderID, orderID)
	}

	capture, err := s.paypal.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, err
	}
	if capture.Status != payment.PayPalCompleted || capture.OrderID != paypalOrderID {
		logger.Warn(ctx, s.log, "paypal capture not completed",
			zap.String("order_id", orderID.String()),
			zap.String("status", capture.Status))
		return nil, fmt.Errorf("%w: status %s", payment.ErrCaptureRejected, capture.Status)
	}
	if !capture.Amount.Equal(order.TotalPrice) {
		logger.Warn(ctx, s.log, "paypal capture amount differs from order total",
			zap.String("order_id", orderID.String()),
			zap.String("captured", capture.Amount.String()),
			zap.String("total", order.TotalPrice.String()))
		return nil, fmt.Errorf("%w: captured %s, order total %s", payment.ErrCaptureRejected, capture.Amount, order.TotalPrice)
	}

	eventID := capture.CaptureID
	if eventID == "" {
		eventID = capture.OrderID
	}
	return s.apply(ctx, orderID, repository.PaymentUpdate{
		EventID:  ProviderPayPal + ":" + eventID,
		Provider: ProviderPayPal,
		Result:   capture.Result(),
		PaidAt:   s.now(),
	})
}

// MarkPaid is the admin path for cash on delivery. A second call returns domain.ErrAlreadyPaid.
func (s *PaymentService) MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.ApplyPayment(ctx, orderID, repository.PaymentUpdate{
		Provider: ProviderManual,
		PaidAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentConfirmed(ProviderManual)
	logger.Info(ctx, s.log, "order marked paid", zap.String("order_id", orderID.String()))
	return order, nil
}

func (s *PaymentService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.MarkDelivered(ctx, orderID, s.now())
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, s.log, "order marked delivered", zap.String("order_id", orderID.String()))
	return order, nil
}

// apply records a provider confirmation. Replayed events and already paid orders
// return the stored order without error.
func (s *PaymentService) apply(ctx context.Context, orderID uuid.UUID, p repository.PaymentUpdate) (*domain.Order, error) {
	order, err := s.orders.ApplyPayment(ctx, orderID, p)
	switch {
	case err == nil:
		s.metrics.PaymentConfirmed(p.Provider)
		logger.Info(ctx, s.log, "order paid",
			zap.String("order_id", orderID.String()),
			zap.String("provider", p.Provider),
			zap.String("event_id", p.EventID))
		return order, nil
	case errors.Is(err, repository.ErrDuplicatePaymentEvent), errors.Is(err, domain.ErrAlreadyPaid):
		logger.Info(ctx, s.log, "payment confirmation ignored",
			zap.String("order_id", orderID.String()),
			zap.String("event_id", p.EventID),
			zap.String("reason", err.Error()))
		return order, nil
	default:
		return nil, err
	}
}

func (s *PaymentService) ownedOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}
