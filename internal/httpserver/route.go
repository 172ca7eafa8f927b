package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/metrics"
	"github.com/Skotchmaster/restaurant_ordering/pkg/authclient"
	"github.com/Skotchmaster/restaurant_ordering/pkg/db"
	authmw "github.com/Skotchmaster/restaurant_ordering/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	JWTSecret      []byte
	AuthClient     *authclient.Client
	DB             *gorm.DB
	Gatherer       prometheus.Gatherer
	// WebhookRPS caps webhook requests per client IP; 0 disables the limit.
	WebhookRPS int
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := db.Ping(c.Request().Context(), d.DB); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	authMW := authmw.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)
	staffOnly := authMW.RequireRole(string(domain.RoleAdmin), string(domain.RoleStaff))

	api := e.Group("/api/v1")

	orders := api.Group("/orders")
	orders.POST("", d.OrderHandler.CreateOrder, authMW.RequireAuth)
	orders.GET("", d.OrderHandler.ListMine, authMW.RequireAuth)
	orders.GET("/all", d.OrderHandler.ListAll, staffOnly)
	orders.GET("/pending", d.OrderHandler.ListPending, staffOnly)
	orders.GET("/in-progress", d.OrderHandler.ListInProgress, staffOnly)
	orders.GET("/:id", d.OrderHandler.GetOrder, authMW.RequireAuth)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder, authMW.RequireAuth)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, staffOnly)

	payments := api.Group("/payments")
	payments.POST("", d.PaymentHandler.CreatePayment, authMW.RequireAuth)
	payments.GET("", d.PaymentHandler.History, authMW.RequireAuth)
	payments.GET("/:id", d.PaymentHandler.GetPayment, authMW.RequireAuth)
	payments.GET("/:id/status", d.PaymentHandler.GetStatus, authMW.RequireAuth)
	payments.POST("/:id/confirm", d.PaymentHandler.ConfirmPayment, authMW.RequireAuth)

	webhooks := payments.Group("/webhook")
	if d.WebhookRPS > 0 {
		webhooks.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.WebhookRPS))))
	}
	webhooks.POST("/stripe", d.PaymentHandler.Webhook(domain.ProviderStripe, "Stripe-Signature"))
	webhooks.POST("/mercadopago", d.PaymentHandler.Webhook(domain.ProviderMercadoPago, "X-Signature"))
}
