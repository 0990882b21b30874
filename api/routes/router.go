package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fooddash-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/fooddash-backend/api/controllers/orders"
	walletcontrollers "github.com/angelmondragon/fooddash-backend/api/controllers/wallet"
	webhookcontrollers "github.com/angelmondragon/fooddash-backend/api/controllers/webhooks"
	"github.com/angelmondragon/fooddash-backend/api/middleware"
	"github.com/angelmondragon/fooddash-backend/internal/delivery"
	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/orders"
	"github.com/angelmondragon/fooddash-backend/internal/topups"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/config"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	ordersSvc orders.Service,
	deliverySvc delivery.Service,
	walletSvc wallet.Service,
	topupSvc topups.Service,
	notificationsSvc notifications.Service,
	midtransWebhookSvc webhookcontrollers.MidtransWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisP,
		}))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/midtrans", webhookcontrollers.MidtransWebhook(midtransWebhookSvc, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(ordersSvc, logg))
			r.Post("/{orderId}/status", ordercontrollers.ChangeStatus(ordersSvc, logg))
		})

		r.Route("/v1/rider", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleRider, logg))
			r.Post("/orders/{orderId}/verify-delivery", ordercontrollers.VerifyDelivery(deliverySvc, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", walletcontrollers.GetWallet(walletSvc, logg))
			r.Get("/transactions", walletcontrollers.ListTransactions(walletSvc, logg))
			r.Post("/topups", walletcontrollers.InitializeTopup(topupSvc, logg))
			r.Post("/topups/{reference}/complete", walletcontrollers.CompleteDemoTopup(topupSvc, logg))
			r.Get("/topups/{reference}/verify", walletcontrollers.VerifyTopup(topupSvc, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/orders/{orderId}/assign-rider", ordercontrollers.AssignRider(ordersSvc, logg))
			r.Get("/wallets/{userId}/reconcile", walletcontrollers.Reconcile(walletSvc, logg))
		})
	})

	return r
}
