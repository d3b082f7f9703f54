package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testSettings() domain.Settings {
	return domain.Settings{
		TaxRate:       decimal.RequireFromString("0.10"),
		Currency:      "USD",
		DeliveryDates: domain.DefaultDeliveryDates(),
	}
}

// staticSettings implements CalculatorSource and SettingsSource.
type staticSettings struct {
	settings domain.Settings
	err      error
}

func (s *staticSettings) Calculator(context.Context) (*pricing.Calculator, error) {
	if s.err != nil {
		return nil, s.err
	}
	return pricing.FromSettings(s.settings), nil
}

func (s *staticSettings) Get(context.Context) (domain.Settings, error) {
	return s.settings, s.err
}

// MockCartRepository keeps carts in memory with the same version rules as Mongo.
type MockCartRepository struct {
	mu        sync.Mutex
	carts     map[string]domain.Cart
	GetErr    error
	Conflicts int // SaveCart fails with ErrCartConflict this many times first
	Saves     int

	// When Gate is set, GetCart signals Entered and waits for Gate or ctx.
	Gate    chan struct{}
	Entered chan struct{}
}

func newMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: map[string]domain.Cart{}}
}

func (m *MockCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if m.Gate != nil {
		select {
		case m.Entered <- struct{}{}:
		default:
		}
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (m *MockCartRepository) SaveCart(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Conflicts > 0 {
		m.Conflicts--
		return repository.ErrCartConflict
	}
	if stored, ok := m.carts[c.UserID]; ok && stored.Version != c.Version {
		return repository.ErrCartConflict
	}
	c.Version++
	m.carts[c.UserID] = c.Clone()
	m.Saves++
	return nil
}

func (m *MockCartRepository) put(c domain.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

type MockCartCache struct {
	mu      sync.Mutex
	carts   map[string]domain.Cart
	GetErr  error
	Deleted []string
	sets    int
}

func newMockCartCache() *MockCartCache {
	return &MockCartCache{carts: map[string]domain.Cart{}}
}

func (m *MockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	out := c.Clone()
	return &out, nil
}

func (m *MockCartCache) Set(_ context.Context, userID string, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = c.Clone()
	m.sets++
	return nil
}

func (m *MockCartCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	m.Deleted = append(m.Deleted, userID)
	return nil
}

func (m *MockCartCache) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

type MockProducts struct {
	Products    map[int64]*domain.Product
	lastRelated relatedCall
}

func (m *MockProducts) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.Products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProducts) GetProductsByIDs(_ context.Context, ids []int64) ([]*domain.Product, error) {
	out := []*domain.Product{}
	for _, id := range ids {
		if p, ok := m.Products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockProducts) GetRelatedProducts(_ context.Context, categories []string, excludeIDs []int64, limit int) ([]*domain.Product, error) {
	m.lastRelated = relatedCall{categories: categories, exclude: excludeIDs, limit: limit}
	return []*domain.Product{}, nil
}

type relatedCall struct {
	categories []string
	exclude    []int64
	limit      int
}

// MockOrderRepository mirrors the Postgres repository rules in memory.
type MockOrderRepository struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	events    map[string]bool
	Outbox    []string
	CreateErr error
}

func newMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: map[uuid.UUID]*domain.Order{}, events: map[string]bool{}}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.CartItem(nil), o.Items...)
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		cp.PaymentResult = &r
	}
	return &cp
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if order.IdempotencyKey != "" {
		for _, o := range m.orders {
			if o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
				return repository.ErrDuplicateCheckout
			}
		}
	}
	order.CreatedAt = time.Now()
	m.orders[order.ID] = copyOrder(order)
	m.Outbox = append(m.Outbox, domain.EventOrderCreated)
	return nil
}

func (m *MockOrderRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MockOrderRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

func (m *MockOrderRepository) SetPaymentResult(_ context.Context, id uuid.UUID, result domain.PaymentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.IsPaid {
		return domain.ErrAlreadyPaid
	}
	o.PaymentResult = &result
	return nil
}

func (m *MockOrderRepository) ApplyPayment(_ context.Context, id uuid.UUID, p repository.PaymentUpdate) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if p.EventID != "" {
		if m.events[p.EventID] {
			return copyOrder(o), repository.ErrDuplicatePaymentEvent
		}
		m.events[p.EventID] = true
	}
	if err := o.MarkPaid(p.Result, p.PaidAt); err != nil {
		return copyOrder(o), err
	}
	m.Outbox = append(m.Outbox, domain.EventOrderPaid)
	return copyOrder(o), nil
}

func (m *MockOrderRepository) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if err := o.MarkDelivered(at); err != nil {
		return copyOrder(o), err
	}
	return copyOrder(o), nil
}

func (m *MockOrderRepository) put(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = copyOrder(o)
}

type MockPayPal struct {
	CreatedID    string
	CreateErr    error
	Capture      *payment.PayPalCapture
	CaptureErr   error
	CaptureCalls int
	LastAmount   decimal.Decimal
	LastCurrency string
}

func (m *MockPayPal) CreateOrder(_ context.Context, amount decimal.Decimal, currency string) (string, error) {
	m.LastAmount = amount
	m.LastCurrency = currency
	return m.CreatedID, m.CreateErr
}

func (m *MockPayPal) CaptureOrder(_ context.Context, _ string) (*payment.PayPalCapture, error) {
	m.CaptureCalls++
	return m.Capture, m.CaptureErr
}
