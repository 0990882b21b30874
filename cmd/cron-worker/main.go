package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fooddash-backend/internal/cron"
	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/topups"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/config"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/instance"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
	"github.com/angelmondragon/fooddash-backend/pkg/migrate"
	"github.com/angelmondragon/fooddash-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	dispatcher, err := notifications.NewDispatcher(notificationsRepo, redisClient, logg, notifications.DispatcherConfig{
		Timeout: cfg.Notifications.DispatchTimeout,
		Channel: cfg.Notifications.RealtimeChannel,
	})
	requireResource(logg, "notification dispatcher", err)
	defer dispatcher.Wait()

	walletRepo := wallet.NewRepository(dbClient.DB())
	walletSvc, err := wallet.NewService(walletRepo, dbClient, dispatcher, ledgerMetrics, logg, wallet.Config{
		Currency:       cfg.Wallet.Currency,
		CurrencyDigits: cfg.Wallet.CurrencyDigits,
	})
	requireResource(logg, "wallet service", err)

	var gateway topups.PaymentGateway
	if cfg.Payments.MidtransServerKey != "" {
		client, err := midtrans.NewClient(context.Background(), cfg.Payments, cfg.Wallet.CurrencyDigits, logg)
		requireResource(logg, "midtrans client", err)
		gateway = client
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
	requireResource(logg, "topups service", err)

	topupJob, err := cron.NewTopupExpiryJob(cron.TopupExpiryJobParams{
		Logger:      logg,
		Topups:      topupSvc,
		ExpireAfter: cfg.Cron.TopupStaleTTL,
		BatchSize:   cfg.Cron.BatchSize,
	})
	requireResource(logg, "topup expiry job", err)

	reconcileJob, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger: logg,
		Owners: walletRepo,
		Ledger: walletSvc,
	})
	requireResource(logg, "wallet reconcile job", err)

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRetention(),
		Retention:  cfg.Notifications.ReadRetention,
		BatchSize:  cfg.Cron.BatchSize,
	})
	requireResource(logg, "notification cleanup job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	requireResource(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(topupJob, reconcileJob, cleanupJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
