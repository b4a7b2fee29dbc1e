package scheduler

import (
	"context"
	"fmt"

	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TenantDispatcher runs one tenant's dispatch cycle. Implemented by the
// dispatcher service; the worker stays free of dispatch logic.
type TenantDispatcher interface {
	DispatchTenant(ctx context.Context, tenantID uuid.UUID) error
}

// Worker consumes dispatch tasks.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	dispatcher TenantDispatcher
	log        *logger.Logger
}

// NewWorker creates the asynq worker.
func NewWorker(cfg config.SchedulerConfig, dispatcher TenantDispatcher, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		dispatcher: dispatcher,
		log:        log,
	}

	mux.HandleFunc(TaskDispatchTenant, w.handleDispatchTenant)

	return w, nil
}

func (w *Worker) handleDispatchTenant(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDispatchTenantPayload(task)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	return w.dispatcher.DispatchTenant(ctx, tenantID)
}

// Run serves tasks until the context is cancelled. A nil worker is a no-op.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	return w.server.Run(w.mux)
}
