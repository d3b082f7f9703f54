package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderAPI is satisfied by *service.OrderService.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, userID string, req service.CheckoutRequest) (uuid.UUID, error)
	GetOrder(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
}

// PaymentAPI is satisfied by *service.PaymentService.
type PaymentAPI interface {
	CreatePayPalOrder(ctx context.Context, userID string, orderID uuid.UUID) (string, error)
	CapturePayPal(ctx context.Context, userID string, orderID uuid.UUID, paypalOrderID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

const IdempotencyKeyHeader = "Idempotency-Key"

type OrdersHandler struct {
	orders   OrderAPI
	payments PaymentAPI
	log      *zap.Logger
}

func NewOrdersHandler(orders OrderAPI, payments PaymentAPI, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, payments: payments, log: log}
}

// CheckoutRequestDTO is the cart the client checks out. Without items the stored
// cart is used. Prices are never read from the client; a total it sends is only
// compared with the server total.
type CheckoutRequestDTO struct {
	Items             []ItemRequestDTO        `json:"items"`
	ShippingAddress   *domain.ShippingAddress `json:"shipping_address"`
	DeliveryDate      string                  `json:"delivery_date"`
	DeliveryDateIndex *int                    `json:"delivery_date_index"`
	PaymentMethod     string                  `json:"payment_method"`
	TotalPrice        *decimal.Decimal        `json:"total_price"`
}

func (d CheckoutRequestDTO) cart() *service.SubmittedCart {
	if len(d.Items) == 0 {
		return nil
	}
	sub := &service.SubmittedCart{
		Items:             make([]service.CheckoutLine, 0, len(d.Items)),
		ShippingAddress:   d.ShippingAddress,
		DeliveryDate:      d.DeliveryDate,
		DeliveryDateIndex: d.DeliveryDateIndex,
		PaymentMethod:     d.PaymentMethod,
	}
	for _, it := range d.Items {
		sub.Items = append(sub.Items, service.CheckoutLine{LineRef: it.line(), Quantity: it.Quantity})
	}
	return sub
}

type CapturePayPalRequestDTO struct {
	PayPalOrderID string `json:"paypal_order_id"`
}

// POST /api/v1/checkout
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.orders.PlaceOrder(r.Context(), userFromContext(r.Context()).ID, service.CheckoutRequest{
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
		Cart:           req.cart(),
		ClientTotal:    req.TotalPrice,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusCreated, "order created", map[string]string{"orderId": id.String()})
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	user := userFromContext(r.Context())
	order, err := h.orders.GetOrder(r.Context(), user.ID, user.IsAdmin, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{id}/paypal
func (h *OrdersHandler) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	paypalID, err := h.payments.CreatePayPalOrder(r.Context(), userFromContext(r.Context()).ID, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "paypal order created", map[string]string{"paypalOrderId": paypalID})
}

// POST /api/v1/orders/{id}/paypal/capture
func (h *OrdersHandler) CapturePayPal(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req CapturePayPalRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PayPalOrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "paypal_order_id is required")
		return
	}

	order, err := h.payments.CapturePayPal(r.Context(), userFromContext(r.Context()).ID, id, req.PayPalOrderID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "order paid", order)
}

// POST /api/v1/admin/orders/{id}/paid
func (h *OrdersHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.payments.MarkPaid(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "order marked paid", order)
}

// POST /api/v1/admin/orders/{id}/delivered
func (h *OrdersHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.payments.MarkDelivered(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "order marked delivered", order)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}
