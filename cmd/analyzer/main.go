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

	"statuspilot_backend/internal/analyzer"
	"statuspilot_backend/internal/classifier"
	"statuspilot_backend/internal/crm"
	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
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
	log.Info("starting analyzer", "env", cfg.Env, "interval", cfg.AnalyzerInterval.String())

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

	ai, err := classifier.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize classifier", "error", err)
		panic("failed to initialize classifier: " + err.Error())
	}

	hours, err := businessHours(cfg)
	if err != nil {
		log.Error("invalid business hours configuration", "error", err)
		panic("invalid business hours configuration: " + err.Error())
	}

	service := analyzer.NewService(
		analyzer.NewRepository(pool),
		ledger.NewRepository(pool),
		ai,
		crm.NewClient(cfg, log),
		cfg,
		hours,
		log,
	)

	service.Run(ctx)
	log.Info("analyzer stopped")
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
