package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const (
	testJWTSecret    = "jwt-test-secret"
	testStripeSecret = "whsec_test"
)

type MockCarts struct {
	cart     *domain.Cart
	err      error
	clientID string

	lastUser  string
	lastLine  service.LineRef
	lastQty   int
	lastIndex *int
	lastName  string
}

func (m *MockCarts) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.lastUser = userID
	return m.cart, m.err
}

func (m *MockCarts) AddItem(ctx context.Context, userID string, line service.LineRef, quantity int) (string, error) {
	m.lastUser, m.lastLine, m.lastQty = userID, line, quantity
	return m.clientID, m.err
}

func (m *MockCarts) UpdateItem(ctx context.Context, userID string, line service.LineRef, quantity int) (*domain.Cart, error) {
	m.lastUser, m.lastLine, m.lastQty = userID, line, quantity
	return m.cart, m.err
}

func (m *MockCarts) RemoveItem(ctx context.Context, userID string, line service.LineRef) (*domain.Cart, error) {
	m.lastUser, m.lastLine = userID, line
	return m.cart, m.err
}

func (m *MockCarts) SetShippingAddress(ctx context.Context, userID string, addr domain.ShippingAddress) (*domain.Cart, error) {
	m.lastUser = userID
	return m.cart, m.err
}

func (m *MockCarts) SetDeliveryDate(ctx context.Context, userID, name string, index *int) (*domain.Cart, error) {
	m.lastUser, m.lastName, m.lastIndex = userID, name, index
	return m.cart, m.err
}

func (m *MockCarts) SetPaymentMethod(ctx context.Context, userID, method string) (*domain.Cart, error) {
	m.lastUser = userID
	return m.cart, m.err
}

func (m *MockCarts) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.lastUser = userID
	return m.cart, m.err
}

type MockOrders struct {
	orderID uuid.UUID
	order   *domain.Order
	orders  []*domain.Order
	err     error

	lastReq     service.CheckoutRequest
	lastIsAdmin bool
}

func (m *MockOrders) PlaceOrder(ctx context.Context, userID string, req service.CheckoutRequest) (uuid.UUID, error) {
	m.lastReq = req
	return m.orderID, m.err
}

func (m *MockOrders) GetOrder(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*domain.Order, error) {
	m.lastIsAdmin = isAdmin
	return m.order, m.err
}

func (m *MockOrders) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return m.orders, m.err
}

type MockPayments struct {
	order    *domain.Order
	paypalID string
	err      error

	chargeCalls   int
	lastEventID   string
	lastCharge    *stripe.Charge
	lastCaptureID string
}

func (m *MockPayments) ConfirmStripeCharge(ctx context.Context, eventID string, charge *stripe.Charge) (*domain.Order, error) {
	m.chargeCalls++
	m.lastEventID = eventID
	m.lastCharge = charge
	return m.order, m.err
}

func (m *MockPayments) CreatePayPalOrder(ctx context.Context, userID string, orderID uuid.UUID) (string, error) {
	return m.paypalID, m.err
}

func (m *MockPayments) CapturePayPal(ctx context.Context, userID string, orderID uuid.UUID, paypalOrderID string) (*domain.Order, error) {
	m.lastCaptureID = paypalOrderID
	return m.order, m.err
}

func (m *MockPayments) MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return m.order, m.err
}

func (m *MockPayments) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return m.order, m.err
}

type MockHistory struct {
	products []*domain.Product
	err      error

	lastKind       string
	lastIDs        []int64
	lastCategories []string
}

func (m *MockHistory) Browse(ctx context.Context, kind string, ids []int64, categories []string) ([]*domain.Product, error) {
	m.lastKind, m.lastIDs, m.lastCategories = kind, ids, categories
	return m.products, m.err
}

type MockSettings struct {
	settings  domain.Settings
	err       error
	refreshes int
}

func (m *MockSettings) Get(ctx context.Context) (domain.Settings, error) {
	return m.settings, m.err
}

func (m *MockSettings) Update(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	if m.err != nil {
		return domain.Settings{}, m.err
	}
	m.settings = next
	return next, nil
}

func (m *MockSettings) Refresh(ctx context.Context) error {
	m.refreshes++
	return m.err
}

type testAPI struct {
	carts    *MockCarts
	orders   *MockOrders
	payments *MockPayments
	history  *MockHistory
	settings *MockSettings
	stripe   *payment.StripeVerifier
	handler  http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		carts:    &MockCarts{cart: &domain.Cart{UserID: "user-1"}},
		orders:   &MockOrders{orderID: uuid.New()},
		payments: &MockPayments{},
		history:  &MockHistory{},
		settings: &MockSettings{},
		stripe:   payment.NewStripeVerifier(testStripeSecret, 5*time.Minute),
	}
	log := zap.NewNop()
	api.handler = NewRouter(
		RouterConfig{RequestTimeout: 5 * time.Second, MaxRequestBodySize: 1 << 20},
		Handlers{
			Cart:     NewCartHandler(api.carts, log),
			Orders:   NewOrdersHandler(api.orders, api.payments, log),
			Webhooks: NewWebhookHandler(api.stripe, api.payments, log),
			Catalog:  NewCatalogHandler(api.history, api.settings, log),
		},
		NewAuthenticator(testJWTSecret),
		nil,
		log,
	)
	return api
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, secret, userID, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func userToken(t *testing.T) string {
	return signToken(t, testJWTSecret, "user-1", "")
}

func adminToken(t *testing.T) string {
	return signToken(t, testJWTSecret, "admin-1", RoleAdmin)
}
