package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/pkg/config"
)

type ServiceConfig struct {
	config.Config

	DefaultDeliveryFee decimal.Decimal
	Currency           string
	BackendURL         string
	GatewayTimeout     time.Duration

	Stripe      gateway.StripeConfig
	MercadoPago gateway.MercadoPagoConfig

	OrderEventsTopic string
	RateLimitRPS     int
}

// Load reads .env when present and then the process environment. It does not
// enforce required values; Validate does that for the server binary.
func Load() ServiceConfig {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("notice: .env not loaded: %v", err)
	}
	cfg := config.Load()

	backend := config.EnvDefault("BACKEND_URL", "http://localhost:8080")
	mpToken := os.Getenv("MERCADOPAGO_ACCESS_TOKEN")

	return ServiceConfig{
		Config: cfg,

		DefaultDeliveryFee: decimalDefault("DEFAULT_DELIVERY_FEE", decimal.RequireFromString("5.00")),
		Currency:           config.EnvDefault("CURRENCY", "brl"),
		BackendURL:         backend,
		GatewayTimeout:     config.EnvDurationDefault("GATEWAY_TIMEOUT", 15*time.Second),

		Stripe: gateway.StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIURL:         os.Getenv("STRIPE_API_URL"),
			Currency:       config.EnvDefault("CURRENCY", "brl"),
		},
		MercadoPago: gateway.MercadoPagoConfig{
			AccessToken:   mpToken,
			WebhookSecret: os.Getenv("MERCADOPAGO_WEBHOOK_SECRET"),
			APIURL:        os.Getenv("MERCADOPAGO_API_URL"),
			BackendURL:    backend,
			Live:          mpToken != "",
		},

		OrderEventsTopic: config.EnvDefault("ORDER_EVENTS_TOPIC", "ordering.events"),
		RateLimitRPS:     config.EnvIntDefault("RATE_LIMIT_RPS", 20),
	}
}

func (c ServiceConfig) Validate() {
	config.MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET")
}

func decimalDefault(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
