package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/service"
	"go.uber.org/zap"
)

// CartAPI is satisfied by *service.CartService.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, line service.LineRef, quantity int) (string, error)
	UpdateItem(ctx context.Context, userID string, line service.LineRef, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, line service.LineRef) (*domain.Cart, error)
	SetShippingAddress(ctx context.Context, userID string, addr domain.ShippingAddress) (*domain.Cart, error)
	SetDeliveryDate(ctx context.Context, userID, name string, index *int) (*domain.Cart, error)
	SetPaymentMethod(ctx context.Context, userID, method string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts CartAPI
	log   *zap.Logger
}

func NewCartHandler(carts CartAPI, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

type ItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (d ItemRequestDTO) line() service.LineRef {
	return service.LineRef{ProductID: d.ProductID, Size: d.Size, Color: d.Color}
}

type DeliveryDateRequestDTO struct {
	Name  string `json:"name"`
	Index *int   `json:"index"`
}

type PaymentMethodRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	clientID, err := h.carts.AddItem(r.Context(), userFromContext(r.Context()).ID, req.line(), req.Quantity)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusCreated, "item added to cart", map[string]string{"client_id": clientID})
}

// PUT /api/v1/cart/items
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItem(r.Context(), userFromContext(r.Context()).ID, req.line(), req.Quantity)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "cart updated", c)
}

// DELETE /api/v1/cart/items?product_id=&size=&color=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	line := service.LineRef{ProductID: productID, Size: q.Get("size"), Color: q.Get("color")}
	c, err := h.carts.RemoveItem(r.Context(), userFromContext(r.Context()).ID, line)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "item removed from cart", c)
}

func (h *CartHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.ShippingAddress
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.SetShippingAddress(r.Context(), userFromContext(r.Context()).ID, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "shipping address saved", c)
}

func (h *CartHandler) SetDeliveryDate(w http.ResponseWriter, r *http.Request) {
	var req DeliveryDateRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.SetDeliveryDate(r.Context(), userFromContext(r.Context()).ID, req.Name, req.Index)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "delivery date saved", c)
}

func (h *CartHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.SetPaymentMethod(r.Context(), userFromContext(r.Context()).ID, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "payment method saved", c)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.ClearCart(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "cart cleared", c)
}
