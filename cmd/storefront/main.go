package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/consumer"
	h "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/notify"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/fjod/go_cart/internal/publisher"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/service"
	"github.com/fjod/go_cart/internal/settings"
	"github.com/fjod/go_cart/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName     = "storefront"
	receiptClaimTTL = 7 * 24 * time.Hour
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("storefront starting", zap.String("env", cfg.Env))

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Env, cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	// Mongo: carts and settings
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal("failed to connect to mongo", zap.Error(err))
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create cart indexes", zap.Error(err))
	}
	settingsRepo := repository.NewMongoSettingsRepository(mongoDB)

	// Redis: cart cache and receipt claims
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, cart cache disabled until it recovers", zap.Error(err))
	}
	cartCache := cache.NewRedisCache(redisClient)
	receiptClaims := cache.NewDeduplicator(redisClient, "receipt", receiptClaimTTL)

	// Postgres: orders, payment events, outbox
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	orderRepo, err := repository.NewPostgresRepository(creds)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(creds); err != nil {
		log.Fatal("failed to run postgres migrations", zap.Error(err))
	}

	// SQLite: product catalog
	productRepo, err := repository.NewProductRepository(cfg.Catalog.DBPath)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer productRepo.Close()
	if err := productRepo.RunMigrations(cfg.Catalog.MigrationsDirPath); err != nil {
		log.Fatal("failed to run catalog migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	defaults, err := settings.Defaults(cfg.Checkout.TaxRate, cfg.Checkout.Currency)
	if err != nil {
		log.Fatal("invalid checkout defaults", zap.Error(err))
	}
	settingsSvc := settings.NewService(settingsRepo, defaults, cfg.Checkout.SettingsTTL, log)

	m := metrics.NewServerMetrics(prometheus.DefaultRegisterer)

	paypal := payment.NewPayPalClient(payment.PayPalConfig{
		BaseURL:  cfg.PayPal.BaseURL,
		ClientID: cfg.PayPal.ClientID,
		Secret:   cfg.PayPal.Secret,
		Timeout:  cfg.PayPal.Timeout,
	}, log)

	cartSvc := service.NewCartService(cartRepo, cartCache, productRepo, settingsSvc, log)
	orderSvc := service.NewOrderService(cartRepo, orderRepo, productRepo, cartSvc, settingsSvc, m, log, cfg.Checkout.StrictTotals)
	paymentSvc := service.NewPaymentService(orderRepo, paypal, settingsSvc, m, log)
	historySvc := service.NewHistoryService(productRepo, cfg.Catalog.HistoryLimit)

	// Background workers
	var wg sync.WaitGroup
	workersCtx, stopWorkers := context.WithCancel(ctx)

	writer := publisher.NewWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	poller := publisher.NewOutboxPoller(orderRepo, writer, cfg.Kafka.PollInterval, m, log)

	cartConsumer := consumer.NewCartConsumer(
		consumer.NewReader(cfg.Kafka.Topic, cfg.Kafka.CartGroupID, cfg.Kafka.Brokers...),
		cartSvc, log)
	receiptConsumer := consumer.NewReceiptConsumer(
		consumer.NewReader(cfg.Kafka.Topic, cfg.Kafka.ReceiptGroupID, cfg.Kafka.Brokers...),
		orderRepo, receiptClaims, notify.NewSMTPSender(cfg.SMTP, log), m, log)

	for _, run := range []func(context.Context){poller.Run, cartConsumer.Run, receiptConsumer.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(workersCtx)
		}()
	}

	// HTTP
	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.HTTP.RequestTimeout,
			MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		},
		h.Handlers{
			Cart:     h.NewCartHandler(cartSvc, log),
			Orders:   h.NewOrdersHandler(orderSvc, paymentSvc, log),
			Webhooks: h.NewWebhookHandler(payment.NewStripeVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.Tolerance), paymentSvc, log),
			Catalog:  h.NewCatalogHandler(historySvc, settingsSvc, log),
		},
		h.NewAuthenticator(cfg.Auth.JWTSecret),
		m,
		log,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down storefront")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers didn't stop in time")
	}

	cartConsumer.Close()
	receiptConsumer.Close()
	if err := writer.Close(); err != nil {
		log.Warn("failed to close kafka writer", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("failed to flush traces", zap.Error(err))
	}
	log.Info("storefront stopped")
}
