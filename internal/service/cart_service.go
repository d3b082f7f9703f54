package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxCartAttempts = 3
	cartLoadTimeout = 5 * time.Second
)

// CalculatorSource hands out a calculator for the current settings.
type CalculatorSource interface {
	Calculator(ctx context.Context) (*pricing.Calculator, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// LineRef identifies a cart line: product plus variant.
type LineRef struct {
	ProductID int64
	Size      string
	Color     string
}

func (l LineRef) item() domain.CartItem {
	return domain.CartItem{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductLookup
	pricing  CalculatorSource
	validate *validator.Validate
	log      *zap.Logger
	sfg      singleflight.Group
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, products ProductLookup, calc CalculatorSource, log *zap.Logger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    c,
		products: products,
		pricing:  calc,
		validate: newValidator(time.Now),
		log:      log,
	}
}

// GetCart reads through the cache. Concurrent misses for one user share a single load.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		// The load is shared, so one caller going away must not fail the others.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()

		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn(ctx, s.log, "cart cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		c, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return s.emptyCart(ctx, userID)
		}
		if err != nil {
			return nil, err
		}

		go func(snapshot domain.Cart) {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, userID, &snapshot); err != nil {
				s.log.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
			}
		}(c.Clone())

		return c, nil
	})
	if err != nil {
		return nil, err
	}

	out := v.(*domain.Cart).Clone()
	return &out, nil
}

// AddItem snapshots the product's price and stock into a new or merged line and
// returns the line's client id.
func (s *CartService) AddItem(ctx context.Context, userID string, line LineRef, quantity int) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if quantity < 1 {
		return "", cart.ErrInvalidQuantity
	}

	item, err := catalogLine(ctx, s.products, line)
	if err != nil {
		return "", err
	}

	var clientID string
	_, err = s.mutate(ctx, userID, func(st *cart.Store) error {
		id, err := st.AddItem(item, quantity)
		clientID = id
		return err
	})
	if err != nil {
		return "", err
	}
	return clientID, nil
}

// catalogLine snapshots the current price and stock of a published product into
// a cart line.
func catalogLine(ctx context.Context, products ProductLookup, line LineRef) (domain.CartItem, error) {
	product, err := products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if !product.IsPublished {
		return domain.CartItem{}, repository.ErrProductNotFound
	}
	return domain.CartItem{
		ProductID:    product.ID,
		Name:         product.Name,
		Slug:         product.Slug,
		Category:     product.Category,
		Image:        product.Image,
		Price:        product.Price,
		CountInStock: product.CountInStock,
		Size:         line.Size,
		Color:        line.Color,
	}, nil
}

func (s *CartService) UpdateItem(ctx context.Context, userID string, line LineRef, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.UpdateItem(line.item(), quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, line LineRef) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.RemoveItem(line.item())
	})
}

func (s *CartService) SetShippingAddress(ctx context.Context, userID string, addr domain.ShippingAddress) (*domain.Cart, error) {
	if err := s.validate.Struct(addr); err != nil {
		return nil, toValidationError(err)
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.SetShippingAddress(addr)
	})
}

// SetDeliveryDate selects an option by name, or by index when name is empty.
func (s *CartService) SetDeliveryDate(ctx context.Context, userID, name string, index *int) (*domain.Cart, error) {
	if name == "" && index == nil {
		return nil, fieldError("deliveryDate", "name or index is required")
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		if name != "" {
			return st.SetDeliveryDate(name)
		}
		return st.SetDeliveryDateIndex(*index)
	})
}

var paymentMethods = []string{domain.PaymentMethodPayPal, domain.PaymentMethodStripe, domain.PaymentMethodCOD}

func (s *CartService) SetPaymentMethod(ctx context.Context, userID, method string) (*domain.Cart, error) {
	if !slices.Contains(paymentMethods, method) {
		return nil, fieldError("paymentMethod", fmt.Sprintf("must be one of %v", paymentMethods))
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.SetPaymentMethod(method)
	})
}

// ClearCart empties the items and keeps address, payment method and delivery choice.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.ClearCart()
	})
}

// RemovePurchased takes an order's bought lines out of the user's cart. Each order
// is applied at most once, so checkout and the order events consumer can both call it.
func (s *CartService) RemovePurchased(ctx context.Context, userID, orderID string, lines []domain.OrderLine) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		return st.RemovePurchased(orderID, lines)
	})
}

// mutate loads the stored cart, applies fn through a cart.Store and writes the
// result back under the version check, retrying on concurrent writes.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*cart.Store) error) (*domain.Cart, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	calc, err := s.pricing.Calculator(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}

	for attempt := 1; attempt <= maxCartAttempts; attempt++ {
		current, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			current = &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
		} else if err != nil {
			return nil, err
		}

		st := cart.NewStore(calc, *current)
		if err := st.Recompute(); err != nil {
			return nil, err
		}
		if err := fn(st); err != nil {
			return nil, err
		}

		next := st.Snapshot()
		err = s.repo.SaveCart(ctx, &next)
		if errors.Is(err, repository.ErrCartConflict) {
			logger.Debug(ctx, s.log, "cart write conflict, retrying",
				zap.String("user_id", userID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidateCache(ctx, userID)
		return &next, nil
	}

	return nil, repository.ErrCartConflict
}

func (s *CartService) emptyCart(ctx context.Context, userID string) (*domain.Cart, error) {
	calc, err := s.pricing.Calculator(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	st := cart.NewStore(calc, domain.Cart{UserID: userID, Items: []domain.CartItem{}})
	if err := st.Recompute(); err != nil {
		return nil, err
	}
	c := st.Snapshot()
	return &c, nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.Warn(ctx, s.log, "cart cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
