package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/cron"
	"marketplace/internal/handlers"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/pkg/payments"
	"marketplace/pkg/rabbitmq"
	"marketplace/pkg/redis"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	serviceName     = "marketplace-api"
	shutdownTimeout = 10 * time.Second
)

// Dependencies are the external resources NewApp wires into the HTTP layer.
// Publisher and Idempotency are optional.
type Dependencies struct {
	Config      config.Config
	Logger      *logger.Logger
	DB          *gorm.DB
	Gateway     payments.Gateway
	Publisher   services.EventPublisher
	Idempotency redis.IdempotencyStore
	Registry    *prometheus.Registry
}

// App is the assembled HTTP application.
type App struct {
	Fiber *fiber.App
	Store repositories.Store
	Auth  *services.AuthService
}

// NewApp builds repositories, services and handlers and registers every route.
func NewApp(deps Dependencies) (*App, error) {
	if deps.DB == nil {
		return nil, errors.New("database required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment gateway required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	cfg := deps.Config

	// --- Repositories ---
	store := repositories.NewGORMStore(deps.DB)
	exchangeAds := repositories.NewGORMExchangeAdRepository(deps.DB)

	// --- Services ---
	authService := services.NewAuthService(store.Users(), cfg.JWT.Secret, cfg.JWT.TTL)
	productService := services.NewProductService(store.Products())
	cartService := services.NewCartService(store.Users(), store.Products())
	orderService := services.NewOrderService(store.Orders(), deps.Publisher, logg)
	exchangeAdService := services.NewExchangeAdService(exchangeAds)

	checkoutService, err := services.NewCheckoutService(services.CheckoutParams{
		Store:        store,
		Gateway:      deps.Gateway,
		Pricing:      services.NewPricing(cfg.Pricing),
		OrderNumbers: services.NewOrderNumberGenerator(cfg.Checkout.OrderNumberMaxAttempts),
		Publisher:    deps.Publisher,
		Logger:       logg,
		Metrics:      metrics.NewCheckoutMetrics(reg),
		Currency:     cfg.Stripe.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	boostService, err := services.NewBoostService(services.BoostParams{
		Products:   store.Products(),
		Gateway:    deps.Gateway,
		DailyPrice: cfg.Boost.DailyPrice,
		Currency:   cfg.Stripe.Currency,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("boost service: %w", err)
	}

	var guard *services.WebhookGuard
	if deps.Idempotency != nil {
		guard, err = services.NewWebhookGuard(deps.Idempotency, cfg.Webhook.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("webhook guard: %w", err)
		}
	}
	webhookService, err := services.NewWebhookService(services.WebhookParams{
		Store:     store,
		Guard:     guard,
		Boosts:    boostService,
		Publisher: deps.Publisher,
		Logger:    logg,
		Metrics:   metrics.NewWebhookMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}

	// --- Fiber App ---
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: handlers.ErrorHandler(logg),
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logg))

	app.Get("/health", func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	auth := middleware.AuthRequired(authService, logg)

	handlers.NewAuthHandler(authService, logg).RegisterRoutes(apiV1)
	handlers.NewWebhookHandler(deps.Gateway, webhookService, logg).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService, boostService, logg).RegisterRoutes(apiV1, auth)
	handlers.NewExchangeAdHandler(exchangeAdService, logg).RegisterRoutes(apiV1, auth)
	handlers.NewCartHandler(cartService, logg).RegisterRoutes(apiV1, auth)
	handlers.NewOrderHandler(orderService, logg).RegisterRoutes(apiV1, auth)
	handlers.NewCheckoutHandler(checkoutService, logg).RegisterRoutes(apiV1, auth)

	return &App{Fiber: app, Store: store, Auth: authService}, nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "server gracefully stopped")
}

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	// Postgres schemas are owned by cmd/migrate; local sqlite databases are
	// migrated in place.
	if cfg.DB.Driver == "sqlite" {
		if err := dbClient.DB().AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := Dependencies{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient.DB(),
		Gateway:  payments.NewStripeGateway(ctx, cfg.Stripe, logg),
		Registry: reg,
	}

	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(ctx, cfg.RabbitMQ, logg)
		if err != nil {
			logg.Warn(ctx, "rabbitmq unavailable, order events disabled: "+err.Error())
		} else {
			defer func() {
				if err := mqClient.Close(); err != nil {
					logg.Error(ctx, "error closing rabbitmq", err)
				}
			}()
			deps.Publisher = mqClient
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Warn(ctx, "redis unavailable, webhook dedupe falls back to order state: "+err.Error())
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logg.Error(ctx, "error closing redis", err)
				}
			}()
			deps.Idempotency = redisClient
		}
	}

	app, err := NewApp(deps)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting server on "+cfg.App.Port)
		return app.Fiber.Listen(cfg.App.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Fiber.ShutdownWithContext(shutdownCtx)
	})

	if cfg.Sweeper.Enabled {
		sweeper, err := newSweeper(cfg, logg, app.Store, redisClient, reg)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// newSweeper schedules the boost expiry job. Redis provides a lock shared by
// all instances; without it the lock is process local.
func newSweeper(cfg config.Config, logg *logger.Logger, store repositories.Store, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Sweeper, error) {
	job, err := cron.NewBoostExpiryJob(cron.BoostExpiryJobParams{
		Logger:    logg,
		Products:  store.Products(),
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("boost expiry job: %w", err)
	}

	var lock cron.Lock = cron.NewLocalLock()
	if redisClient != nil {
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("boost-expiry"), cfg.Sweeper.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("cron lock: %w", err)
		}
	}

	return cron.NewSweeper(cron.SweeperConfig{
		Jobs:     []cron.Job{job},
		Lock:     lock,
		Interval: cfg.Sweeper.Interval,
		Logger:   logg,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
}
