package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ishakdedicc/f1store-next.js/internal/metrics"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Carts              CartManager
	Orders             OrderManager
	Payments           PaymentManager
	Webhooks           CardWebhookReceiver
	Metrics            *metrics.ServerMetrics
	MetricsHandler     http.Handler
	AllowedOrigins     []string
	WebhookRatePerSec  float64
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Carts, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.Payments, cfg.RequestTimeout)
	webhookHandler := NewWebhookHandler(cfg.Webhooks, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	webhookLimiter := NewRateLimiter(cfg.WebhookRatePerSec, int(cfg.WebhookRatePerSec)+1)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(webhookLimiter.Limit).Post("/webhooks/stripe", webhookHandler.Stripe)

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.Post("/merge", cartHandler.Merge)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordersHandler.CreateOrder)
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
				r.Post("/{order_id}/paypal", ordersHandler.InitiatePayPal)
				r.Post("/{order_id}/paypal/capture", ordersHandler.CapturePayPal)
			})

			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(AdminOnly)
				r.Put("/{order_id}/pay", ordersHandler.MarkPaid)
				r.Put("/{order_id}/deliver", ordersHandler.MarkDelivered)
				r.Delete("/{order_id}", ordersHandler.DeleteOrder)
			})
		})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", UserIDHeader, UserRoleHeader},
		AllowCredentials: true,
	}).Handler(r)

	return otelhttp.NewHandler(corsHandler, "checkout-service")
}
