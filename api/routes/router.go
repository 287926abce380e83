package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cafepos-backend/api/controllers"
	deliverycontrollers "github.com/angelmondragon/cafepos-backend/api/controllers/deliveries"
	eventcontrollers "github.com/angelmondragon/cafepos-backend/api/controllers/events"
	ordercontrollers "github.com/angelmondragon/cafepos-backend/api/controllers/orders"
	webordercontrollers "github.com/angelmondragon/cafepos-backend/api/controllers/weborders"
	"github.com/angelmondragon/cafepos-backend/api/middleware"
	"github.com/angelmondragon/cafepos-backend/internal/auth"
	"github.com/angelmondragon/cafepos-backend/internal/deliveries"
	"github.com/angelmondragon/cafepos-backend/internal/orders"
	"github.com/angelmondragon/cafepos-backend/internal/weborders"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/redis"
)

// Deps holds everything the HTTP surface is built from. Syncer stays nil
// when no web order feed is configured.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *redis.Client
	Gatherer   prometheus.Gatherer
	Auth       auth.Service
	Orders     orders.Service
	WebOrders  weborders.Service
	Syncer     webordercontrollers.Syncer
	Deliveries deliveries.Service
	Events     eventcontrollers.Subscriber
}

var (
	allStaff      = []enums.StaffRole{enums.StaffRoleManager, enums.StaffRoleCashier, enums.StaffRoleKitchen, enums.StaffRoleDriver}
	frontOfHouse  = []enums.StaffRole{enums.StaffRoleManager, enums.StaffRoleCashier}
	statusEditors = []enums.StaffRole{enums.StaffRoleManager, enums.StaffRoleCashier, enums.StaffRoleKitchen}
	dispatchers   = []enums.StaffRole{enums.StaffRoleManager, enums.StaffRoleCashier, enums.StaffRoleDriver}
)

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var idempotencyStore redis.IdempotencyStore
	if d.Redis != nil {
		idempotencyStore = d.Redis
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)


	readyDeps := map[string]controllers.Pinger{}
	if d.DB != nil {
		readyDeps["db"] = d.DB
	}
	if d.Redis != nil {
		readyDeps["redis"] = d.Redis
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(throttle(middleware.LoginThrottle(cfg.AuthRateLimit), d.Redis, logg)).Post("/auth/login", controllers.AuthLogin(d.Auth, logg))

		r.With(
			middleware.ChannelKey(cfg.WebOrders.ChannelKey, logg),
			throttle(middleware.IntakeThrottle(cfg.AuthRateLimit), d.Redis, logg),
			idempotent,
		).Post("/web-orders", webordercontrollers.Intake(d.WebOrders, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(idempotent)

			r.With(middleware.RequireRole(logg, enums.StaffRoleManager)).Post("/staff", controllers.CreateStaff(d.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, allStaff...))
				r.Get("/orders", ordercontrollers.List(d.Orders, logg))
				r.Get("/orders/{orderId}", ordercontrollers.Detail(d.Orders, logg))
				r.Get("/deliveries", deliverycontrollers.List(d.Deliveries, logg))
				r.Get("/deliveries/{deliveryId}", deliverycontrollers.Detail(d.Deliveries, logg))
				r.Get("/events", eventcontrollers.Stream(d.Events, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, frontOfHouse...))
				r.Post("/orders", ordercontrollers.Create(d.Orders, logg))
				r.Put("/orders/{orderId}/items", ordercontrollers.UpdateItems(d.Orders, logg))
				r.Post("/deliveries", deliverycontrollers.Create(d.Deliveries, logg))
				r.Get("/web-orders", webordercontrollers.List(d.WebOrders, logg))
				r.Get("/web-orders/{webOrderId}", webordercontrollers.Detail(d.WebOrders, logg))
				r.Post("/web-orders/import", webordercontrollers.Import(d.WebOrders, logg))
				r.Post("/web-orders/sync", webordercontrollers.Sync(d.Syncer, logg))
			})

			r.With(middleware.RequireRole(logg, statusEditors...)).Put("/orders/{orderId}/status", ordercontrollers.UpdateStatus(d.Orders, logg))
			r.With(middleware.RequireRole(logg, dispatchers...)).Put("/deliveries/{deliveryId}/status", deliverycontrollers.UpdateStatus(d.Deliveries, logg))
			r.With(middleware.RequireRole(logg, enums.StaffRoleManager)).Delete("/orders/{orderId}", ordercontrollers.Delete(d.Orders, logg))
		})
	})

	return r
}

func throttle(t middleware.Throttle, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Limit(t, client, logg)
}
