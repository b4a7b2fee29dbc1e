package webhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errRepoNotConfigured = errors.New("webhook repository not configured")

// Repository resolves webhook senders back to tenants.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TenantIDByOperatorPhone looks up the tenant whose operator owns the given
// phone, digits-only E.164 without the plus sign.
func (r *Repository) TenantIDByOperatorPhone(ctx context.Context, digits string) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errRepoNotConfigured
	}

	const query = `
		SELECT id
		FROM company
		WHERE regexp_replace(operator_phone, '\D', '', 'g') = $1
		LIMIT 1`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, digits).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, errors.New("no tenant for operator phone")
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
