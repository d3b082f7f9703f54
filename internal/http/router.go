package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Cart     *CartHandler
	Orders   *OrdersHandler
	Webhooks *WebhookHandler
	Catalog  *CatalogHandler
}

func NewRouter(cfg RouterConfig, h Handlers, auth *Authenticator, m *metrics.ServerMetrics, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(Metrics(m))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", h.Webhooks.Stripe)
		r.Get("/products/browsing-history", h.Catalog.BrowsingHistory)
		r.Get("/settings", h.Catalog.GetSettings)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items", h.Cart.UpdateItem)
				r.Delete("/items", h.Cart.RemoveItem)
				r.Put("/shipping-address", h.Cart.SetShippingAddress)
				r.Put("/delivery-date", h.Cart.SetDeliveryDate)
				r.Put("/payment-method", h.Cart.SetPaymentMethod)
			})

			r.Post("/checkout", h.Orders.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{id}", h.Orders.GetOrder)
				r.Post("/{id}/paypal", h.Orders.CreatePayPalOrder)
				r.Post("/{id}/paypal/capture", h.Orders.CapturePayPal)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/orders/{id}/paid", h.Orders.MarkPaid)
				r.Post("/orders/{id}/delivered", h.Orders.MarkDelivered)
				r.Put("/settings", h.Catalog.UpdateSettings)
				r.Post("/settings/refresh", h.Catalog.RefreshSettings)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
