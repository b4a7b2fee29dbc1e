package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"statuspilot_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues dispatch tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// DispatchEnqueuer is the producer-side interface the webhook module uses.
type DispatchEnqueuer interface {
	EnqueueDispatchTenant(ctx context.Context, payload DispatchTenantPayload) error
}

// NewClient creates an asynq client from the redis URL.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

// Close releases the underlying redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDispatchTenant queues an immediate dispatch cycle for one tenant.
// Duplicate tasks within a short window collapse to one.
func (c *Client) EnqueueDispatchTenant(ctx context.Context, payload DispatchTenantPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDispatchTenantTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("dispatch-tenant-"+payload.TenantID),
	)
	if err != nil && errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
