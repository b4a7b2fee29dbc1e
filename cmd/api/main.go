package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"statuspilot_backend/internal/analyzer"
	"statuspilot_backend/internal/crm"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/scheduler"
	"statuspilot_backend/internal/webhook"
	"statuspilot_backend/internal/window"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/db"
	"statuspilot_backend/platform/httpkit"
	"statuspilot_backend/platform/logger"
	"statuspilot_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting webhook server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	records := ledger.NewRepository(pool)
	windows := window.NewRepository(pool)
	store := analyzer.NewRepository(pool)
	crmClient := crm.NewClient(cfg, log)

	enqueuer, closeEnqueuer := initDispatchEnqueuer(cfg, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}

	dedup, err := webhook.NewDeduper(cfg)
	if err != nil {
		log.Error("failed to initialize webhook deduper", "error", err)
		panic("failed to initialize webhook deduper: " + err.Error())
	}
	defer dedup.Close()
	if dedup == nil {
		log.Warn("REDIS_URL not configured; webhook deduplication disabled")
	}

	archive, err := webhook.NewArchive(cfg, log)
	if err != nil {
		log.Error("failed to initialize webhook archive", "error", err)
		panic("failed to initialize webhook archive: " + err.Error())
	}
	if archive != nil {
		log.Info("webhook archive enabled", "bucket", cfg.ArchiveBucket)
	}

	webhookModule := webhook.NewModule(pool, records, windows, store, crmClient, enqueuer, dedup, archive, cfg, validator.New(), log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(cfg)))

	rateLimiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, log)
	engine.Use(rateLimiter.RateLimit())

	engine.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	webhookModule.RegisterRoutes(engine)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-ID")
	if cfg.CORSAllowAll || len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}
	corsCfg.AllowOrigins = cfg.CORSOrigins
	return corsCfg
}

func initDispatchEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.DispatchEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; reopen dispatch enqueue disabled")
		return (*scheduler.Client)(nil), nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize dispatch enqueuer", "error", err)
		return (*scheduler.Client)(nil), nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
