// Package ledger persists the transition ledger: one record per evaluation
// outcome, carrying the confirmation lifecycle from pending to answered.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
)

// Executor identifies which engine produced a transition record.
type Executor string

const (
	// ExecutorAI marks records produced by the LLM classifier.
	ExecutorAI Executor = "ai"
	// ExecutorKeyword marks records produced by the keyword matcher.
	ExecutorKeyword Executor = "keyword"
)

// Decision is the audit outcome of the decision engine for a record.
type Decision string

const (
	// DecisionKeep means the evaluation confirmed the current status.
	DecisionKeep Decision = "keep_same_status"
	// DecisionAutoUpdate means the change was applied without confirmation.
	DecisionAutoUpdate Decision = "auto_update"
	// DecisionConfirmationScheduled means an operator confirmation was queued.
	DecisionConfirmationScheduled Decision = "confirmation_scheduled"
)

// Record is one row of the transition ledger.
type Record struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	LeadID              uuid.UUID
	Executor            Executor
	Decision            Decision
	Context             domain.ConfirmationContext
	Note                string
	MessageStatus       domain.MessageStatus
	MessageScheduleDate time.Time
	ClaimedAt           *time.Time
	SentAt              *time.Time
	AnswerAction        *domain.TransitionAction
	AnsweredAt          *time.Time
	LastError           *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
