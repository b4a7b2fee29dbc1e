package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/platform/apperr"
)

const errRepoNotConfigured = "ledger repository not configured"

// InsertParams describes a new transition record.
type InsertParams struct {
	TenantID            uuid.UUID
	LeadID              uuid.UUID
	Executor            Executor
	Decision            Decision
	Context             domain.ConfirmationContext
	Note                string
	MessageStatus       domain.MessageStatus // optional; derived from Decision when empty
	MessageScheduleDate time.Time
}

// normalize derives the initial message status from the decision and checks
// that records which will reach an operator carry a valid confirmation
// context.
func (p InsertParams) normalize() (domain.MessageStatus, error) {
	if p.Executor != ExecutorAI && p.Executor != ExecutorKeyword {
		return "", fmt.Errorf("unknown executor %q", p.Executor)
	}

	status := p.MessageStatus
	if status == "" {
		if p.Decision == DecisionConfirmationScheduled {
			status = domain.MessageStatusPending
		} else {
			status = domain.MessageStatusNotApplicable
		}
	}

	if status == domain.MessageStatusPending || p.Decision == DecisionAutoUpdate {
		if err := p.Context.Validate(); err != nil {
			return "", err
		}
	}
	return status, nil
}

// PendingSummary is the per-tenant aggregate used by the dispatcher to decide
// whether a tenant needs a cycle and what the reopen message should say.
type PendingSummary struct {
	TenantID     uuid.UUID
	PendingLeads int
}

// Repository stores transition records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ledger repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, tenant_id, lead_id, executor, decision, context, note,
	message_status, message_schedule_date, claimed_at, sent_at, answer_action,
	answered_at, last_error, created_at, updated_at`

// State guards derived from the domain lifecycle map, so the SQL checks can
// never drift from it.
var (
	answerableStates   = statusInList(domain.TransitionSources(domain.MessageStatusAnswered))
	supersedableStates = statusInList(domain.TransitionSources(domain.MessageStatusIgnored))
)

func statusInList(states []domain.MessageStatus) string {
	quoted := make([]string, len(states))
	for i, s := range states {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}

var claimPendingQuery = `WITH ranked AS (
	SELECT id, row_number() OVER (PARTITION BY lead_id ORDER BY message_schedule_date DESC, created_at DESC) AS rn
	FROM lead_status_transition
	WHERE tenant_id = $1 AND message_status = 'pending'
), cte AS (
	SELECT t.id
	FROM lead_status_transition t
	JOIN ranked ON ranked.id = t.id AND ranked.rn = 1
	ORDER BY t.message_schedule_date ASC
	LIMIT $2
	FOR UPDATE OF t SKIP LOCKED
)
UPDATE lead_status_transition l
SET message_status = 'sending', claimed_at = now(), updated_at = now()
FROM cte
WHERE l.id = cte.id AND l.message_status = 'pending'
RETURNING ` + qualifiedColumns("l")

const revertToPendingQuery = `UPDATE lead_status_transition
	 SET message_status = 'pending', claimed_at = NULL, last_error = $2, updated_at = now()
	 WHERE id = $1 AND message_status = 'sending'`

const markSentQuery = `UPDATE lead_status_transition
	 SET message_status = 'sent', sent_at = now(), last_error = NULL, updated_at = now()
	 WHERE id = $1 AND message_status = 'sending'
	 RETURNING lead_id`

var supersedeOthersQuery = `UPDATE lead_status_transition
	 SET message_status = 'ignored', updated_at = now()
	 WHERE lead_id = $1 AND id <> $2 AND message_status IN (` + supersedableStates + `)`

const sweepStuckSendingQuery = `UPDATE lead_status_transition
	 SET message_status = 'pending', claimed_at = NULL, updated_at = now()
	 WHERE message_status = 'sending' AND claimed_at < now() - make_interval(secs => $1)`

var recordAnswerQuery = `UPDATE lead_status_transition
	 SET message_status = 'answered', answer_action = $2, answered_at = now(), updated_at = now()
	 WHERE id = $1 AND message_status IN (` + answerableStates + `)
	 RETURNING ` + recordColumns

// Insert writes a new record. Records that will reach an operator carry a
// confirmation context, which is validated here so resolution never meets a
// malformed one.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	if p.TenantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("tenantId is required")
	}
	if p.LeadID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("leadId is required")
	}
	status, err := p.normalize()
	if err != nil {
		return uuid.Nil, err
	}
	if status == domain.MessageStatusPending && p.MessageScheduleDate.IsZero() {
		p.MessageScheduleDate = time.Now().UTC()
	}

	contextBytes, err := json.Marshal(p.Context)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal context: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx,
		`INSERT INTO lead_status_transition
		 (tenant_id, lead_id, executor, decision, context, note, message_status, message_schedule_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.TenantID, p.LeadID, string(p.Executor), string(p.Decision), contextBytes,
		p.Note, string(status), nullableTime(p.MessageScheduleDate),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ClaimPending atomically flips up to limit pending records of the tenant to
// sending and returns them. Only the newest pending record per lead is
// claimable; older ones wait to be superseded. Concurrent claimers never
// receive the same record.
func (r *Repository) ClaimPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 20
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, claimPendingQuery, tenantID, limit)
	if err != nil {
		return nil, err
	}

	results, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// RevertToPending returns a claimed record to the queue after a send failure.
func (r *Repository) RevertToPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, revertToPendingQuery, id, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("record %s is not in sending state", id))
	}
	return nil
}

// MarkSent records a successful delivery and supersedes every older queued
// record of the same lead, so at most one live confirmation exists per lead.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var leadID uuid.UUID
	err = tx.QueryRow(ctx, markSentQuery, id).Scan(&leadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict(fmt.Sprintf("record %s is not in sending state", id))
		}
		return err
	}

	_, err = tx.Exec(ctx, supersedeOthersQuery, leadID, id)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SweepStuckSending returns records stuck in sending longer than staleAfter
// back to pending. A crashed dispatcher leaves such rows behind.
func (r *Repository) SweepStuckSending(ctx context.Context, staleAfter time.Duration) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, sweepStuckSendingQuery, staleAfter.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordAnswer stores the operator's button press. Answers on superseded
// (ignored) records are still accepted; the caller decides how loudly to log
// that. Already-answered records are rejected.
func (r *Repository) RecordAnswer(ctx context.Context, id uuid.UUID, action domain.TransitionAction) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errors.New(errRepoNotConfigured)
	}

	row := r.pool.QueryRow(ctx, recordAnswerQuery, id, string(action))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.Conflict(fmt.Sprintf("record %s cannot be answered", id))
		}
		return Record{}, err
	}
	return rec, nil
}

// SupersedingRecord returns the newest queued or delivered record of the same
// lead other than the given one, if any. Used to name the superseder when a
// stale answer arrives.
func (r *Repository) SupersedingRecord(ctx context.Context, leadID, excludeID uuid.UUID) (*Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM lead_status_transition
		 WHERE lead_id = $1 AND id <> $2 AND message_status IN ('pending', 'sending', 'sent')
		 ORDER BY message_schedule_date DESC, created_at DESC
		 LIMIT 1`,
		leadID, excludeID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// TenantsWithPending lists tenants that have queued confirmations, with the
// count of distinct leads awaiting one.
func (r *Repository) TenantsWithPending(ctx context.Context) ([]PendingSummary, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT tenant_id, COUNT(DISTINCT lead_id)
		 FROM lead_status_transition
		 WHERE message_status = 'pending'
		 GROUP BY tenant_id
		 ORDER BY tenant_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PendingSummary
	for rows.Next() {
		var summary PendingSummary
		if err := rows.Scan(&summary.TenantID, &summary.PendingLeads); err != nil {
			return nil, err
		}
		results = append(results, summary)
	}
	return results, rows.Err()
}

// PendingLeadCount counts distinct leads of one tenant awaiting dispatch.
func (r *Repository) PendingLeadCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT lead_id)
		 FROM lead_status_transition
		 WHERE tenant_id = $1 AND message_status = 'pending'`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LastEvaluation returns the creation time of the lead's most recent record
// for the given executor, or nil when none exists.
func (r *Repository) LastEvaluation(ctx context.Context, leadID uuid.UUID, executor Executor) (*time.Time, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	var createdAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at FROM lead_status_transition
		 WHERE lead_id = $1 AND executor = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		leadID, string(executor),
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &createdAt, nil
}

func qualifiedColumns(alias string) string {
	return alias + `.id, ` + alias + `.tenant_id, ` + alias + `.lead_id, ` + alias + `.executor, ` +
		alias + `.decision, ` + alias + `.context, ` + alias + `.note, ` + alias + `.message_status, ` +
		alias + `.message_schedule_date, ` + alias + `.claimed_at, ` + alias + `.sent_at, ` +
		alias + `.answer_action, ` + alias + `.answered_at, ` + alias + `.last_error, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var executor, decision, messageStatus string
	var contextBytes []byte
	var answerAction *string
	var scheduleDate *time.Time

	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.LeadID, &executor, &decision, &contextBytes,
		&rec.Note, &messageStatus, &scheduleDate, &rec.ClaimedAt, &rec.SentAt,
		&answerAction, &rec.AnsweredAt, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Executor = Executor(executor)
	rec.Decision = Decision(decision)
	rec.MessageStatus = domain.MessageStatus(messageStatus)
	if scheduleDate != nil {
		rec.MessageScheduleDate = *scheduleDate
	}
	if answerAction != nil {
		action := domain.TransitionAction(*answerAction)
		rec.AnswerAction = &action
	}
	if len(contextBytes) > 0 {
		if err := json.Unmarshal(contextBytes, &rec.Context); err != nil {
			return Record{}, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
