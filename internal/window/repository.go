package window

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "window repository not configured"

// Snapshot is a tenant's window bookkeeping.
type Snapshot struct {
	TenantID         uuid.UUID
	LastResponseAt   *time.Time
	LastReopenSentAt *time.Time
}

// Repository persists window bookkeeping on the tenant row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a window repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the window snapshot for one tenant.
func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	if r == nil || r.pool == nil {
		return Snapshot{}, errors.New(errRepoNotConfigured)
	}

	snap := Snapshot{TenantID: tenantID}
	err := r.pool.QueryRow(ctx,
		`SELECT last_response_at, last_reopen_sent_at FROM company WHERE id = $1`,
		tenantID,
	).Scan(&snap.LastResponseAt, &snap.LastReopenSentAt)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Renew records an operator response, reopening the window from now.
// Any button press on a confirmation message renews it.
func (r *Repository) Renew(ctx context.Context, tenantID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE company SET last_response_at = now(), updated_at = now() WHERE id = $1`,
		tenantID,
	)
	return err
}

// MarkReopenSent records that a reopen template went out, capping reopen
// messages at one per local calendar day.
func (r *Repository) MarkReopenSent(ctx context.Context, tenantID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE company SET last_reopen_sent_at = now(), updated_at = now() WHERE id = $1`,
		tenantID,
	)
	return err
}
