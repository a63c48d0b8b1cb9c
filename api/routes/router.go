package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradebridge-io/tradebridge-backend/api/controllers"
	ordercontrollers "github.com/tradebridge-io/tradebridge-backend/api/controllers/orders"
	transportercontrollers "github.com/tradebridge-io/tradebridge-backend/api/controllers/transporters"
	"github.com/tradebridge-io/tradebridge-backend/api/middleware"
	"github.com/tradebridge-io/tradebridge-backend/internal/assignments"
	"github.com/tradebridge-io/tradebridge-backend/internal/notifications"
	"github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	readiness map[string]controllers.Pinger,
	ordersSvc orders.Service,
	coordinator *assignments.Coordinator,
	notificationsSvc notifications.Service,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Put("/{orderId}/status", ordercontrollers.UpdateStatus(ordersSvc, logg))
			r.Post("/{orderId}/dispute", ordercontrollers.Dispute(ordersSvc, logg))
			r.Put("/{orderId}/handle-return", ordercontrollers.HandleReturn(ordersSvc, logg))
		})

		r.Route("/transporters", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleTransporter), logg))
			r.Get("/available-orders", transportercontrollers.FreePool(coordinator, logg, false))
			r.Get("/available-returns", transportercontrollers.FreePool(coordinator, logg, true))
			r.Get("/assigned-orders", transportercontrollers.Queue(coordinator, logg))
			r.Put("/orders/{orderId}/accept", transportercontrollers.Accept(coordinator, logg))
			r.Put("/orders/{orderId}/reject", transportercontrollers.Reject(coordinator, logg))
			r.Put("/return-orders/{orderId}/accept", transportercontrollers.Accept(coordinator, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})
	})

	return r
}
