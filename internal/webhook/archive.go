package webhook

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

// Archive stores raw webhook payloads in object storage for replay and
// debugging. Best effort: archive failures never block delivery processing.
type Archive struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchive builds the archive client. Returns nil when archiving is
// disabled, and a nil Archive discards everything.
func NewArchive(cfg config.ArchiveConfig, log *logger.Logger) (*Archive, error) {
	if !cfg.IsArchiveEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetArchiveEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetArchiveAccessKey(), cfg.GetArchiveSecretKey(), ""),
		Secure: cfg.GetArchiveUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	return &Archive{client: client, bucket: cfg.GetArchiveBucket(), log: log}, nil
}

// Store uploads one raw payload. Objects are keyed by provider and receipt
// time so deliveries for a day can be listed with a prefix scan.
func (a *Archive) Store(ctx context.Context, provider string, body []byte) {
	if a == nil || a.client == nil {
		return
	}

	name := fmt.Sprintf("%s/%s/%s.json",
		provider,
		time.Now().UTC().Format("2006-01-02"),
		uuid.NewString(),
	)

	_, err := a.client.PutObject(ctx, a.bucket, name,
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		a.log.Error("failed to archive webhook payload", "object", name, "error", err)
	}
}
