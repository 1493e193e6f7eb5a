package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/maallem-marketplace/internal/config"
	"github.com/iliyamo/maallem-marketplace/internal/database"
	"github.com/iliyamo/maallem-marketplace/internal/handler"
	"github.com/iliyamo/maallem-marketplace/internal/middleware"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
	"github.com/iliyamo/maallem-marketplace/internal/queue"
	"github.com/iliyamo/maallem-marketplace/internal/repository"
	"github.com/iliyamo/maallem-marketplace/internal/router"
	"github.com/iliyamo/maallem-marketplace/internal/service"
	"github.com/iliyamo/maallem-marketplace/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	// Redis is optional: without it rate limiting and caching are off.
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and response cache disabled", "addr", redisCfg.Addr)
	} else {
		defer rdb.Close()
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}

	images, err := storage.NewImages(cfg.ImagesDir)
	if err != nil {
		return err
	}

	publisher := newPublisher(ctx, cfg, logger)
	defer publisher.Close()

	pol := policy.New(cfg.AdminEmail)
	dir := service.NewDirectory(db, images, pol, service.TokenConfig{Secret: cfg.JWTSecret, TTLMin: cfg.AccessTTLMin}, logger)
	engine := service.NewEngine(repository.NewRequestRepo(db), dir, pol, publisher, logger)
	purger := service.NewPurger(db, images, pol, publisher, logger)
	if inv := middleware.NewCacheInvalidator(cacheCfg, rdb); inv != nil {
		dir.SetCacheInvalidator(inv)
		purger.SetCacheInvalidator(inv)
	}

	if cfg.AdminPassword != "" {
		if _, err := dir.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword); err != nil {
			return err
		}
	} else {
		logger.Warn("ADMIN_PASSWORD not set, admin account is not seeded", "admin_email", cfg.AdminEmail)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Health:    handler.NewHealthHandler(db),
		Auth:      handler.NewAuthHandler(dir),
		Directory: handler.NewDirectoryHandler(dir),
		Requests:  handler.NewRequestHandler(engine),
		Account:   handler.NewAccountHandler(dir),
		Admin:     handler.NewAdminHandler(dir, purger),
		Policy:    pol,
		AuthCfg:   middleware.AuthConfig{Secret: cfg.JWTSecret, TrustHeaders: cfg.TrustIdentityHeaders},
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: rlCfg,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newPublisher connects the event publisher and starts the activity log
// consumer.  Events are disabled when no broker is configured or reachable.
func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) service.Publisher {
	if cfg.RabbitURL == "" {
		logger.Info("RABBITMQ_URL not set, events disabled")
		return service.NopPublisher{}
	}
	pub, err := service.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange)
	if err != nil {
		logger.Warn("event broker unavailable, events disabled", "error", err)
		return service.NopPublisher{}
	}

	activity := queue.NewActivityLog(cfg.ActivityLogDir)
	go func() {
		if err := queue.StartActivityConsumer(ctx, cfg.RabbitURL, cfg.EventsExchange, activity); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("activity consumer stopped", "error", err)
		}
	}()
	return pub
}
