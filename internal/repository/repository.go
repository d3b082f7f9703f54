package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrCartNotFound          = errors.New("cart not found")
	ErrCartConflict          = errors.New("cart was modified concurrently")
	ErrSettingsNotFound      = errors.New("settings not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateCheckout     = errors.New("order for this idempotency key already exists")
	ErrDuplicatePaymentEvent = errors.New("payment event already processed")
	ErrProductNotFound       = errors.New("product not found")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// SaveCart writes the whole snapshot if the stored version still equals
	// cart.Version, then bumps cart.Version.
	SaveCart(ctx context.Context, cart *domain.Cart) error
}

type SettingsRepository interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	SaveSettings(ctx context.Context, s *domain.Settings) error
}

// PaymentUpdate describes a confirmed payment. EventID is the provider event id
// and is empty for manual confirmations.
type PaymentUpdate struct {
	EventID  string
	Provider string
	Result   *domain.PaymentResult
	PaidAt   time.Time
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	SetPaymentResult(ctx context.Context, id uuid.UUID, result domain.PaymentResult) error
	ApplyPayment(ctx context.Context, id uuid.UUID, p PaymentUpdate) (*domain.Order, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Order, error)
}

type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	CountUnprocessedEvents(ctx context.Context) (int, error)
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)
	GetRelatedProducts(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]*domain.Product, error)
}
