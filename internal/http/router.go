package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Catalog  Catalog
	Cart     CartService
	Checkout CheckoutService
	Orders   OrderReader
	Health   []HealthChecker
	Auth     *auth.Validator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SecureCookies      bool
}

func NewRouter(cfg RouterConfig) (http.Handler, error) {
	v, err := newViews()
	if err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	store := NewStoreHandler(cfg.Catalog, cfg.Cart, v, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.Orders, v, cfg.RequestTimeout)
	hostedHandler := NewHostedHandler(cfg.Checkout, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLoggerMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(LimitBodyMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		for _, hc := range cfg.Health {
			if err := hc.Ping(r.Context()); err != nil {
				requestLogger(r).WarnContext(r.Context(), "health check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.SecureCookies))
		r.Use(auth.NewMiddleware(cfg.Auth))

		r.Get("/", store.Index)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", store.ShowCart)
			r.Post("/items", store.AddItem)
			r.Post("/items/{item_id}/remove", store.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.ShowCheckout)
			r.Post("/", checkoutHandler.SubmitCheckout)
			r.Get("/callback", checkoutHandler.Callback)
			r.Get("/success", checkoutHandler.Success)
			r.Get("/failure", checkoutHandler.Failure)
		})

		r.Route("/api/v1/checkout/hosted/orders", func(r chi.Router) {
			r.Post("/", hostedHandler.CreateOrder)
			r.Post("/{order_id}/capture", hostedHandler.CaptureOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront"), nil
}
