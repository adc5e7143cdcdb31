package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/svillega/lastbite-backend/api/controllers"
	webhookcontrollers "github.com/svillega/lastbite-backend/api/controllers/webhooks"
	"github.com/svillega/lastbite-backend/api/middleware"
	checkoutsvc "github.com/svillega/lastbite-backend/internal/checkout"
	listingssvc "github.com/svillega/lastbite-backend/internal/listings"
	"github.com/svillega/lastbite-backend/internal/loyalty"
	orderssvc "github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/internal/pickup"
	"github.com/svillega/lastbite-backend/internal/reconcile"
	gatewaywebhook "github.com/svillega/lastbite-backend/internal/webhooks/gateway"
	"github.com/svillega/lastbite-backend/pkg/config"
	"github.com/svillega/lastbite-backend/pkg/db"
	"github.com/svillega/lastbite-backend/pkg/enums"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/logger"
	"github.com/svillega/lastbite-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. The router wires, it does
// not construct: services arrive fully built from main.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	GatewayClient   *gateway.Client
	CheckoutService checkoutsvc.Service
	ListingsService listingssvc.Service
	OrdersService   orderssvc.Service
	LoyaltyService  *loyalty.Service
	PickupService   *pickup.Service
	Coordinator     *reconcile.Coordinator
	WebhookService  *gatewaywebhook.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated surface: the storefront, provider callbacks and
		// the browser landing after the hosted payment page.
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", controllers.BrowseListings(deps.ListingsService, logg))
			r.Get("/{listingID}", controllers.GetListing(deps.ListingsService, logg))
		})
		r.Post("/webhooks/gateway", webhookcontrollers.GatewayWebhook(deps.WebhookService, deps.GatewayClient, logg))
		r.Get("/payments/return/{leg}", controllers.PaymentReturn(deps.Coordinator, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.OrdersService, logg))
				r.Get("/{orderID}", controllers.GetOrder(deps.OrdersService, logg))
				r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Coordinator, logg))
			})
			r.Get("/loyalty/balance", controllers.LoyaltyBalance(deps.LoyaltyService, logg))

			r.Route("/restaurant", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleRestaurant.String(), logg))
				r.Route("/listings", func(r chi.Router) {
					r.Get("/", controllers.ListRestaurantListings(deps.ListingsService, logg))
					r.Post("/", controllers.CreateListing(deps.ListingsService, logg))
					r.Post("/{listingID}/deactivate", controllers.DeactivateListing(deps.ListingsService, logg))
				})
				r.Post("/orders/{orderID}/ready", controllers.MarkOrderReady(deps.OrdersService, logg))
				r.Post("/pickup/scan", controllers.PickupScan(deps.PickupService, logg))
			})
		})
	})

	return r
}
