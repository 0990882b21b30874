package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	webhookcontrollers "github.com/angelmondragon/fooddash-backend/api/controllers/webhooks"
	"github.com/angelmondragon/fooddash-backend/api/routes"
	"github.com/angelmondragon/fooddash-backend/internal/catalog"
	"github.com/angelmondragon/fooddash-backend/internal/delivery"
	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/orders"
	"github.com/angelmondragon/fooddash-backend/internal/topups"
	"github.com/angelmondragon/fooddash-backend/internal/users"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	midtranswebhook "github.com/angelmondragon/fooddash-backend/internal/webhooks/midtrans"
	"github.com/angelmondragon/fooddash-backend/pkg/config"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
	"github.com/angelmondragon/fooddash-backend/pkg/migrate"
	"github.com/angelmondragon/fooddash-backend/pkg/redis"
)

const (
	shutdownTimeout   = 15 * time.Second
	webhookGuardScope = "midtrans-webhook"
	readHeaderTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	orderMetrics := metrics.NewOrderMetrics(registry)

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	dispatcher, err := notifications.NewDispatcher(notificationsRepo, redisClient, logg, notifications.DispatcherConfig{
		Timeout: cfg.Notifications.DispatchTimeout,
		Channel: cfg.Notifications.RealtimeChannel,
	})
	requireService(logg, "notification dispatcher", err)
	defer dispatcher.Wait()
	notificationsSvc, err := notifications.NewService(notificationsRepo)
	requireService(logg, "notifications", err)

	walletSvc, err := wallet.NewService(
		wallet.NewRepository(dbClient.DB()),
		dbClient,
		dispatcher,
		ledgerMetrics,
		logg,
		wallet.Config{Currency: cfg.Wallet.Currency, CurrencyDigits: cfg.Wallet.CurrencyDigits},
	)
	requireService(logg, "wallet", err)

	directory, err := users.NewDirectory(users.NewRepository(dbClient.DB()))
	requireService(logg, "user directory", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		DB:        dbClient,
		Directory: directory,
		Catalog:   catalog.NewRepository(dbClient.DB()),
		Ledger:    walletSvc,
		Notifier:  dispatcher,
		Metrics:   orderMetrics,
		Logger:    logg,
		Config: orders.Config{
			ChargeOnConfirmation: cfg.Wallet.ChargeOnConfirmation(),
			Currency:             cfg.Wallet.Currency,
			CurrencyDigits:       cfg.Wallet.CurrencyDigits,
		},
	})
	requireService(logg, "orders", err)

	limiter, err := delivery.NewAttemptLimiter(redisClient, cfg.Delivery.MaxFailedAttempts, cfg.Delivery.AttemptWindow)
	requireService(logg, "delivery attempt limiter", err)
	deliverySvc, err := delivery.NewService(ordersRepo, ordersSvc, limiter, logg)
	requireService(logg, "delivery", err)

	// A missing server key leaves only demo top-ups available.
	var gateway topups.PaymentGateway
	var midtransClient *midtrans.Client
	if cfg.Payments.MidtransServerKey != "" {
		midtransClient, err = midtrans.NewClient(context.Background(), cfg.Payments, cfg.Wallet.CurrencyDigits, logg)
		requireService(logg, "midtrans client", err)
		gateway = midtransClient
	} else {
		logg.Warn(context.Background(), "midtrans server key not set; hosted checkout disabled")
	}

	topupSvc, err := topups.NewService(topups.ServiceParams{
		Repo:     topups.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Ledger:   walletSvc,
		Gateway:  gateway,
		Notifier: dispatcher,
		Metrics:  ledgerMetrics,
		Logger:   logg,
		Config: topups.Config{
			MinAmountMinor: cfg.Wallet.MinTopupMinor,
			MaxAmountMinor: cfg.Wallet.MaxTopupMinor,
			DemoEnabled:    cfg.FeatureFlags.DemoTopups,
		},
	})
	requireService(logg, "topups", err)

	var webhookSvc *midtranswebhook.Service
	if midtransClient != nil {
		guard, err := midtranswebhook.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookTTL, webhookGuardScope)
		requireService(logg, "midtrans webhook guard", err)
		webhookSvc, err = midtranswebhook.NewService(midtranswebhook.ServiceParams{
			Topups:         topupSvc,
			Verifier:       midtransClient,
			Guard:          guard,
			Logger:         logg,
			CurrencyDigits: cfg.Wallet.CurrencyDigits,
		})
		requireService(logg, "midtrans webhook", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("HOSTNAME")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			redisClient,
			registry,
			ordersSvc,
			deliverySvc,
			walletSvc,
			topupSvc,
			notificationsSvc,
			webhookHandler(webhookSvc),
		),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

// webhookHandler keeps a nil *Service from becoming a non-nil interface.
func webhookHandler(svc *midtranswebhook.Service) webhookcontrollers.MidtransWebhookService {
	if svc == nil {
		return nil
	}
	return svc
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
