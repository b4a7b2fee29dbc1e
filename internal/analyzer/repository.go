package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"statuspilot_backend/internal/domain"
)

const errRepoNotConfigured = "analyzer repository not configured"

// EligibilityParams tunes the eligible-lead selection. Limit caps leads per
// tenant per cycle, so one busy tenant never starves the others.
type EligibilityParams struct {
	DefaultLookbackDays int
	GracePeriod         time.Duration
	ReprocessInterval   time.Duration
	ReprocessAwaiting   time.Duration
	Limit               int
}

const eligibleLeadsQuery = `
	WITH due AS (
		SELECT l.id, l.tenant_id, l.name, l.phone, l.status_id,
		       s.code AS status_code, s.name AS status_name,
		       l.last_message_at, l.last_evaluated_at, l.created_at,
		       row_number() OVER (
		           PARTITION BY l.tenant_id
		           ORDER BY l.last_evaluated_at ASC NULLS FIRST, l.created_at ASC
		       ) AS rn
		FROM lead l
		JOIN company c ON c.id = l.tenant_id
		JOIN status s ON s.id = l.status_id
		WHERE c.automation_enabled
		  AND COALESCE(l.phone, '') <> ''
		  AND s.code NOT IN ('END_WON', 'END_LOST')
		  AND l.created_at >= now() - make_interval(days => COALESCE(c.lookback_days, $1))
		  AND (
		        (l.last_evaluated_at IS NULL AND l.created_at < now() - make_interval(secs => $2))
		     OR (l.last_evaluated_at < now() - make_interval(secs =>
		            CASE WHEN EXISTS (
		                SELECT 1 FROM lead_status_transition t
		                WHERE t.lead_id = l.id AND t.message_status IN ('pending', 'sending', 'sent')
		            ) THEN $3 ELSE $4 END))
		  )
	)
	SELECT id, tenant_id, name, phone, status_id, status_code, status_name,
	       last_message_at, last_evaluated_at, created_at
	FROM due
	WHERE rn <= $5
	ORDER BY tenant_id, rn`

// Repository reads evaluation inputs and mirrors local lead state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analyzer repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EligibleLeads selects leads due for re-evaluation, oldest-evaluated first
// within each tenant, never-evaluated leads ahead of everyone. A lead
// qualifies when its tenant has automation on, it has a phone number, its
// status is not terminal, it is within the lookback window, and either it was
// never evaluated and is past the grace period, or its last evaluation is
// older than the reprocess interval. Leads awaiting an operator confirmation
// use the longer interval. At most Limit leads per tenant per cycle.
func (r *Repository) EligibleLeads(ctx context.Context, p EligibilityParams) ([]domain.Lead, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if p.Limit < 1 {
		p.Limit = 100
	}

	rows, err := r.pool.Query(ctx, eligibleLeadsQuery,
		p.DefaultLookbackDays, p.GracePeriod.Seconds(),
		p.ReprocessAwaiting.Seconds(), p.ReprocessInterval.Seconds(), p.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var lead domain.Lead
		if err := rows.Scan(
			&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.StatusID,
			&lead.StatusCode, &lead.StatusName, &lead.LastMessageAt,
			&lead.LastEvaluatedAt, &lead.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Tenant loads one tenant with its automation settings.
func (r *Repository) Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error) {
	if r == nil || r.pool == nil {
		return domain.Tenant{}, errors.New(errRepoNotConfigured)
	}

	var tenant domain.Tenant
	var mode, provider string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, crm_login, operator_phone, COALESCE(business_context, ''),
		       automation_enabled, automation_mode, messaging_provider, lookback_days,
		       last_response_at, last_reopen_sent_at
		FROM company WHERE id = $1`,
		tenantID,
	).Scan(
		&tenant.ID, &tenant.Name, &tenant.CRMLogin, &tenant.OperatorPhone,
		&tenant.BusinessContext, &tenant.AutomationEnabled, &mode, &provider,
		&tenant.LookbackDays, &tenant.LastResponseAt, &tenant.LastReopenSentAt,
	)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenant.AutomationMode = domain.AutomationMode(mode)
	if !tenant.AutomationMode.IsValid() {
		tenant.AutomationMode = domain.ModeAlwaysConfirm
	}
	tenant.Provider = domain.MessagingProvider(provider)
	if tenant.Provider == "" {
		tenant.Provider = domain.ProviderTemplate
	}
	return tenant, nil
}

// Messages loads a lead's conversation oldest-first.
func (r *Repository) Messages(ctx context.Context, leadID uuid.UUID) ([]domain.ConversationMessage, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, sender, body, sent_at
		FROM conversation_message
		WHERE lead_id = $1
		ORDER BY sent_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var msg domain.ConversationMessage
		var sender string
		if err := rows.Scan(&msg.ID, &msg.LeadID, &sender, &msg.Body, &msg.SentAt); err != nil {
			return nil, err
		}
		msg.Sender = domain.MessageSender(sender)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// StatusCatalog loads the tenant's statuses.
func (r *Repository) StatusCatalog(ctx context.Context, tenantID uuid.UUID) ([]domain.Status, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, code, name, COALESCE(description, ''),
		       COALESCE(automation_mode, ''), min_confidence
		FROM status
		WHERE tenant_id = $1
		ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []domain.Status
	for rows.Next() {
		var status domain.Status
		var mode string
		if err := rows.Scan(
			&status.ID, &status.TenantID, &status.Code, &status.Name,
			&status.Description, &mode, &status.MinConfidence,
		); err != nil {
			return nil, err
		}
		status.AutomationMode = domain.AutomationMode(mode)
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// KeywordRules loads the tenant's keyword rules.
func (r *Repository) KeywordRules(ctx context.Context, tenantID uuid.UUID) ([]domain.KeywordRule, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, pre_status_id, post_status_id, phrase, min_occurrences
		FROM keyword_rule
		WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.KeywordRule
	for rows.Next() {
		var rule domain.KeywordRule
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.PreStatusID, &rule.PostStatusID,
			&rule.Phrase, &rule.MinOccurrences,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpdateLeadStatus mirrors a status change onto the local lead row.
func (r *Repository) UpdateLeadStatus(ctx context.Context, leadID, statusID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE lead SET status_id = $2, updated_at = now() WHERE id = $1`,
		leadID, statusID,
	)
	return err
}

// MarkEvaluated stamps the lead so the reprocess interval starts counting.
func (r *Repository) MarkEvaluated(ctx context.Context, leadID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE lead SET last_evaluated_at = now(), updated_at = now() WHERE id = $1`,
		leadID,
	)
	return err
}
