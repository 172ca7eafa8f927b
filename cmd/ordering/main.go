package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Skotchmaster/restaurant_ordering/internal/config"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/httpserver"
	"github.com/Skotchmaster/restaurant_ordering/internal/metrics"
	"github.com/Skotchmaster/restaurant_ordering/internal/notify"
	"github.com/Skotchmaster/restaurant_ordering/internal/repo"
	"github.com/Skotchmaster/restaurant_ordering/internal/service"
	"github.com/Skotchmaster/restaurant_ordering/pkg/authclient"
	"github.com/Skotchmaster/restaurant_ordering/pkg/db"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
	loggingmw "github.com/Skotchmaster/restaurant_ordering/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()
	cfg.Validate()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	store := repo.New(gdb)
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(migrateCtx)
	cancel()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var sender notify.Sender = notify.Nop{}
	var kafka *notify.KafkaSender
	if len(cfg.KafkaBrokers) > 0 {
		kafka = notify.NewKafkaSender(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		sender = kafka
	} else {
		logger.Info("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}
	notifier := notify.NewBestEffort(sender, 2*time.Second)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	httpClient := gateway.NewHTTPClient(cfg.GatewayTimeout)
	gateways := gateway.NewRegistry(
		gateway.NewStripe(cfg.Stripe, httpClient),
		gateway.NewMercadoPago(cfg.MercadoPago, httpClient),
		gateway.Manual{},
	)
	if !cfg.MercadoPago.Live {
		logger.Info("pix_simulated", "reason", "MERCADOPAGO_ACCESS_TOKEN is empty")
	}

	orders := service.NewOrderService(store, notifier, m, service.OrderConfig{DefaultDeliveryFee: cfg.DefaultDeliveryFee})
	payments := service.NewPaymentService(store, gateways, notifier, m)

	var authClient *authclient.Client
	if cfg.AuthHTTPURL != "" {
		authClient = authclient.NewClient(cfg.AuthHTTPURL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Middleware())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:   &httpserver.OrderHTTP{Svc: orders},
		PaymentHandler: &httpserver.PaymentHTTP{Svc: payments},
		JWTSecret:      cfg.JWTAccessSecret,
		AuthClient:     authClient,
		DB:             gdb,
		Gatherer:       reg,
		WebhookRPS:     cfg.RateLimitRPS,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}

	logger.Info("shutdown_complete")
}
