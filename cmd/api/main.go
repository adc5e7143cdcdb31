package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/svillega/lastbite-backend/api/routes"
	"github.com/svillega/lastbite-backend/internal/checkout"
	"github.com/svillega/lastbite-backend/internal/inventory"
	"github.com/svillega/lastbite-backend/internal/listings"
	"github.com/svillega/lastbite-backend/internal/loyalty"
	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/internal/pickup"
	"github.com/svillega/lastbite-backend/internal/reconcile"
	gatewaywebhook "github.com/svillega/lastbite-backend/internal/webhooks/gateway"
	"github.com/svillega/lastbite-backend/pkg/config"
	"github.com/svillega/lastbite-backend/pkg/db"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/logger"
	"github.com/svillega/lastbite-backend/pkg/metrics"
	"github.com/svillega/lastbite-backend/pkg/migrate"
	"github.com/svillega/lastbite-backend/pkg/outbox"
	"github.com/svillega/lastbite-backend/pkg/redis"
)

// Webhook marks outlive the provider's retry horizon so a replay weeks later
// still acks without reprocessing.
const webhookIdempotencyTTL = 7 * 24 * time.Hour

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

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
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)
	ledger := inventory.NewLedger(reconcileMetrics)
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	loyaltyService := loyalty.NewService(dbClient.DB())

	listingsService, err := listings.NewService(listings.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create listings service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		ordersRepo,
		ledger,
		gatewayClient,
		cfg.Checkout,
		cfg.App.PublicBaseURL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	coordinator, err := reconcile.NewCoordinator(
		dbClient,
		ordersRepo,
		ledger,
		gatewayClient,
		loyaltyService,
		outboxService,
		reconcileMetrics,
		reconcile.Options{
			StatusPolls:     cfg.Gateway.StatusPolls,
			LoyaltyPoints:   cfg.Loyalty.PointsPerOrder,
			DeepLinkBaseURL: cfg.App.DeepLinkBaseURL,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile coordinator", err)
		os.Exit(1)
	}

	pickupService, err := pickup.NewService(dbClient, ordersRepo, outboxService, reconcileMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup service", err)
		os.Exit(1)
	}

	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, gatewaywebhook.IdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Guard:       webhookGuard,
		Coordinator: coordinator,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			GatewayClient:   gatewayClient,
			CheckoutService: checkoutService,
			ListingsService: listingsService,
			OrdersService:   ordersService,
			LoyaltyService:  loyaltyService,
			PickupService:   pickupService,
			Coordinator:     coordinator,
			WebhookService:  webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
