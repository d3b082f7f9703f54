package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutRequest carries what the client sent with the checkout. ClientTotal is only
// compared against the server total, never used.
type CheckoutRequest struct {
	IdempotencyKey string
	Cart           *SubmittedCart
	ClientTotal    *decimal.Decimal
}

// SubmittedCart is the cart the client checks out. Only line keys, quantities and
// checkout choices are read from it. Prices and stock come from the catalog.
type SubmittedCart struct {
	Items             []CheckoutLine
	ShippingAddress   *domain.ShippingAddress
	DeliveryDate      string
	DeliveryDateIndex *int
	PaymentMethod     string
}

type CheckoutLine struct {
	LineRef
	Quantity int
}

// CartPruner is satisfied by *CartService.
type CartPruner interface {
	RemovePurchased(ctx context.Context, userID, orderID string, lines []domain.OrderLine) (*domain.Cart, error)
}

type OrderService struct {
	carts        repository.CartRepository
	orders       repository.OrderRepository
	products     ProductLookup
	pruner       CartPruner
	pricing      CalculatorSource
	validate     *validator.Validate
	metrics      *metrics.ServerMetrics
	log          *zap.Logger
	strictTotals bool
	now          func() time.Time
	newID        func() uuid.UUID
}

func NewOrderService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	products ProductLookup,
	pruner CartPruner,
	calc CalculatorSource,
	m *metrics.ServerMetrics,
	log *zap.Logger,
	strictTotals bool,
) *OrderService {
	s := &OrderService{
		carts:        carts,
		orders:       orders,
		products:     products,
		pruner:       pruner,
		pricing:      calc,
		metrics:      m,
		log:          log,
		strictTotals: strictTotals,
		now:          time.Now,
		newID:        uuid.New,
	}
	s.validate = newValidator(func() time.Time { return s.now() })
	return s
}

// PlaceOrder turns the submitted cart, or the user's stored cart when none was
// submitted, into an unpaid order. Prices are always recomputed from the catalog
// and current settings.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req CheckoutRequest) (uuid.UUID, error) {
	if userID == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		if err == nil {
			logger.Info(ctx, s.log, "checkout replayed", zap.String("order_id", existing.ID.String()))
			return existing.ID, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return uuid.Nil, err
		}
	}

	calc, err := s.pricing.Calculator(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load pricing: %w", err)
	}

	var priced domain.Cart
	if req.Cart != nil {
		priced, err = s.priceSubmitted(ctx, userID, *req.Cart, calc)
	} else {
		priced, err = s.priceStored(ctx, userID, calc)
	}
	if err != nil {
		return uuid.Nil, err
	}

	if req.ClientTotal != nil && !req.ClientTotal.Equal(priced.TotalPrice) {
		fields := []zap.Field{
			zap.String("user_id", userID),
			zap.String("client_total", req.ClientTotal.String()),
			zap.String("server_total", priced.TotalPrice.String()),
		}
		if s.strictTotals {
			logger.Warn(ctx, s.log, "checkout rejected, client total differs", fields...)
			return uuid.Nil, ErrPriceMismatch
		}
		logger.Warn(ctx, s.log, "client total differs, using server total", fields...)
	}

	order, err := s.buildOrder(userID, priced, calc)
	if err != nil {
		return uuid.Nil, err
	}
	order.IdempotencyKey = req.IdempotencyKey

	if err := s.validateOrder(order); err != nil {
		return uuid.Nil, err
	}

	err = s.orders.CreateOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicateCheckout) && req.IdempotencyKey != "" {
		existing, getErr := s.orders.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		if getErr != nil {
			return uuid.Nil, fmt.Errorf("lookup duplicate checkout: %w", getErr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return uuid.Nil, err
	}

	s.metrics.OrderPlaced()
	logger.Info(ctx, s.log, "order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID),
		zap.String("total", order.TotalPrice.StringFixed(2)))

	s.prunePurchased(ctx, order)
	return order.ID, nil
}

func (s *OrderService) priceStored(ctx context.Context, userID string, calc *pricing.Calculator) (domain.Cart, error) {
	stored, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		stored = &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	} else if err != nil {
		return domain.Cart{}, err
	}

	st := cart.NewStore(calc, *stored)
	if err := st.Recompute(); err != nil {
		return domain.Cart{}, err
	}
	return st.Snapshot(), nil
}

// priceSubmitted rebuilds the submitted cart line by line from the catalog, so
// stock limits apply and client prices never reach the order.
func (s *OrderService) priceSubmitted(ctx context.Context, userID string, sub SubmittedCart, calc *pricing.Calculator) (domain.Cart, error) {
	if len(sub.Items) == 0 {
		return domain.Cart{}, fieldError("items", "is required")
	}

	st := cart.NewStore(calc, domain.Cart{UserID: userID, Items: []domain.CartItem{}, PaymentMethod: sub.PaymentMethod})
	if sub.ShippingAddress != nil {
		if err := st.SetShippingAddress(*sub.ShippingAddress); err != nil {
			return domain.Cart{}, err
		}
	}

	switch {
	case sub.DeliveryDate != "":
		if err := st.SetDeliveryDate(sub.DeliveryDate); err != nil {
			return domain.Cart{}, err
		}
	case sub.DeliveryDateIndex != nil:
		if err := st.SetDeliveryDateIndex(*sub.DeliveryDateIndex); err != nil {
			return domain.Cart{}, err
		}
	}

	for _, line := range sub.Items {
		if line.Quantity < 1 {
			return domain.Cart{}, cart.ErrInvalidQuantity
		}
		item, err := catalogLine(ctx, s.products, line.LineRef)
		if err != nil {
			return domain.Cart{}, err
		}
		if _, err := st.AddItem(item, line.Quantity); err != nil {
			return domain.Cart{}, err
		}
	}
	return st.Snapshot(), nil
}

// prunePurchased takes the order's lines out of the stored cart. A failure leaves
// the work to the cart consumer, which applies the same order at most once.
func (s *OrderService) prunePurchased(ctx context.Context, order *domain.Order) {
	if s.pruner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
	defer cancel()

	if _, err := s.pruner.RemovePurchased(ctx, order.UserID, order.ID.String(), domain.OrderLines(order.Items)); err != nil {
		logger.Warn(ctx, s.log, "purchased lines left in cart",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func (s *OrderService) buildOrder(userID string, priced domain.Cart, calc *pricing.Calculator) (*domain.Order, error) {
	order := &domain.Order{
		ID:            s.newID(),
		UserID:        userID,
		Items:         priced.Items,
		DeliveryDate:  priced.DeliveryDate,
		PaymentMethod: priced.PaymentMethod,
		ItemsPrice:    priced.ItemsPrice,
		ShippingPrice: decimal.Zero,
		TaxPrice:      decimal.Zero,
		TotalPrice:    priced.TotalPrice,
	}
	if priced.ShippingAddress != nil {
		order.ShippingAddress = *priced.ShippingAddress
	}
	if priced.ShippingPrice != nil {
		order.ShippingPrice = *priced.ShippingPrice
	}
	if priced.TaxPrice != nil {
		order.TaxPrice = *priced.TaxPrice
	}

	if priced.DeliveryDate != "" {
		option, _, err := calc.Resolve(pricing.Selection{Name: priced.DeliveryDate})
		if err != nil {
			return nil, err
		}
		order.ExpectedDeliveryDate = s.now().UTC().AddDate(0, 0, option.DaysToDeliver)
	}
	return order, nil
}

func (s *OrderService) validateOrder(order *domain.Order) error {
	var fields []FieldError
	if err := s.validate.Struct(order); err != nil {
		verr := toValidationError(err)
		var ve *ValidationError
		if !errors.As(verr, &ve) {
			return verr
		}
		fields = ve.Fields
	}
	if order.PaymentMethod != "" && !slices.Contains(paymentMethods, order.PaymentMethod) {
		fields = append(fields, FieldError{Field: "paymentMethod", Message: fmt.Sprintf("must be one of %v", paymentMethods)})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// GetOrder returns the order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !isAdmin {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.orders.ListOrdersByUserID(ctx, userID)
}
