package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"statuspilot_backend/internal/alerting"
	"statuspilot_backend/internal/analyzer"
	"statuspilot_backend/internal/dispatcher"
	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/messaging"
	"statuspilot_backend/internal/scheduler"
	"statuspilot_backend/internal/window"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/db"
	"statuspilot_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting dispatcher", "env", cfg.Env, "interval", cfg.DispatchInterval.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	templates, err := dispatcher.LoadTemplates(cfg.TemplateFile)
	if err != nil {
		log.Error("failed to load message templates", "error", err, "file", cfg.TemplateFile)
		panic("failed to load message templates: " + err.Error())
	}

	alerts, err := alerting.NewMailer(cfg, log)
	if err != nil {
		log.Error("failed to initialize alert mailer", "error", err)
		panic("failed to initialize alert mailer: " + err.Error())
	}
	if alerts == nil {
		log.Warn("SMTP not configured; dispatch failure alerts disabled")
	}

	hours, err := businessHours(cfg)
	if err != nil {
		log.Error("invalid business hours configuration", "error", err)
		panic("invalid business hours configuration: " + err.Error())
	}

	service := dispatcher.NewService(
		ledger.NewRepository(pool),
		window.NewRepository(pool),
		analyzer.NewRepository(pool),
		messaging.SenderOrNil(messaging.NewTemplateClient(cfg, log)),
		messaging.SenderOrNil(messaging.NewSessionClient(cfg, log)),
		templates,
		alerts,
		cfg,
		hours,
		log,
	)

	// The asynq worker reacts to window-reopen button presses with an
	// immediate dispatch for that tenant; the periodic loop covers the rest.
	if cfg.RedisURL != "" {
		worker, err := scheduler.NewWorker(cfg, service, log)
		if err != nil {
			log.Error("failed to initialize dispatch worker", "error", err)
			panic("failed to initialize dispatch worker: " + err.Error())
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error("dispatch worker stopped", "error", err)
			}
		}()
	} else {
		log.Warn("REDIS_URL not configured; reopen-triggered dispatch disabled")
	}

	service.Run(ctx)
	log.Info("dispatcher stopped")
}

func businessHours(cfg config.ScheduleConfig) (domain.BusinessHours, error) {
	loc, err := time.LoadLocation(cfg.GetBusinessTimezone())
	if err != nil {
		return domain.BusinessHours{}, fmt.Errorf("load timezone %q: %w", cfg.GetBusinessTimezone(), err)
	}
	return domain.BusinessHours{
		StartHour: cfg.GetBusinessHoursStart(),
		EndHour:   cfg.GetBusinessHoursEnd(),
		Location:  loc,
	}, nil
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
