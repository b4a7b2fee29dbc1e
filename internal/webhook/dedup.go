package webhook

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"statuspilot_backend/platform/config"
)

const dedupTTL = 24 * time.Hour

// Deduper suppresses webhook redeliveries by provider message ID. Providers
// retry deliveries aggressively, and a confirmation answer applied twice
// would double-hit the CRM.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduper connects to redis using the configured URL. Returns nil when no
// URL is configured, and a nil Deduper treats every delivery as first-seen.
func NewDeduper(cfg config.DedupConfig) (*Deduper, error) {
	url := cfg.GetRedisURL()
	if url == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return &Deduper{rdb: redis.NewClient(opt), ttl: dedupTTL}, nil
}

// Seen reports whether this delivery ID was already processed, marking it as
// processed otherwise.
func (d *Deduper) Seen(ctx context.Context, provider, messageID string) (bool, error) {
	if d == nil || d.rdb == nil || messageID == "" {
		return false, nil
	}

	key := "webhook:dedup:" + provider + ":" + messageID
	stored, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

func (d *Deduper) Close() error {
	if d == nil || d.rdb == nil {
		return nil
	}
	return d.rdb.Close()
}
