package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/item-engine/internal/config"
	"github.com/kursadbilgin/item-engine/internal/events"
	"github.com/kursadbilgin/item-engine/internal/handler"
	"github.com/kursadbilgin/item-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/item-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/item-engine/internal/infra/redis"
	"github.com/kursadbilgin/item-engine/internal/notify"
	"github.com/kursadbilgin/item-engine/internal/observability"
	"github.com/kursadbilgin/item-engine/internal/pool"
	"github.com/kursadbilgin/item-engine/internal/repository"
	"github.com/kursadbilgin/item-engine/internal/service"
	"github.com/kursadbilgin/item-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	taskPool := pool.New(pool.Config{
		CoreWorkers: cfg.PoolCoreWorkers,
		MaxWorkers:  cfg.PoolMaxWorkers,
		QueueSize:   cfg.PoolQueueSize,
		IdleTimeout: time.Duration(cfg.PoolIdleTimeoutSec) * time.Second,
	}, logger)
	taskPool.SetMetrics(metrics)

	itemRepo := repository.NewGormItemRepo(db)
	runRepo := repository.NewGormRunRepo(db)

	itemService, err := service.NewItemService(itemRepo, logger)
	if err != nil {
		logger.Fatal("item service initialization failed", zap.Error(err))
	}

	processor, err := service.NewBatchProcessor(
		itemRepo,
		runRepo,
		taskPool,
		time.Duration(cfg.ProcessDelayMs)*time.Millisecond,
		logger,
	)
	if err != nil {
		logger.Fatal("batch processor initialization failed", zap.Error(err))
	}
	processor.SetMetrics(metrics)

	var rabbit *events.RabbitMQ
	if cfg.EventsAMQPURL != "" {
		rabbit, err = events.NewRabbitMQ(cfg.EventsAMQPURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		processor.SetEventPublisher(events.NewRabbitMQPublisher(rabbit))
		logger.Info("run completion events enabled")
	}

	if cfg.ProcessWebhookURL != "" {
		notifier, err := notify.NewWebhookNotifier(cfg.ProcessWebhookURL)
		if err != nil {
			logger.Fatal("webhook notifier initialization failed", zap.Error(err))
		}
		processor.SetNotifier(notifier)
		logger.Info("run completion webhook enabled", zap.String("endpoint", cfg.ProcessWebhookURL))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	writeLimit := transport.RateLimitMiddleware(limiter, "items_write", logger)
	app.Use("/v1/items", func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete:
			return writeLimit(c)
		}
		return c.Next()
	})

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterItemRoutes(app, itemService, processor,
		time.Duration(cfg.ProcessTimeoutSec)*time.Second); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("item-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		logger.Info("metrics endpoint started", zap.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", zap.Error(err))
		}

		// Drain in-flight batch tasks before releasing infrastructure.
		taskPool.Close()

		if rabbit != nil {
			if err := rabbit.Close(); err != nil {
				logger.Error("rabbitmq close failed", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("stopped")
}
