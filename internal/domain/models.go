package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessagingProvider selects which channel delivers a tenant's messages.
type MessagingProvider string

const (
	// ProviderTemplate is the official template/interactive message API.
	ProviderTemplate MessagingProvider = "template"
	// ProviderSession is the session message API with inline buttons.
	ProviderSession MessagingProvider = "session"
)

// Tenant is a company account whose leads are re-evaluated. Each tenant has
// its own status catalog, messaging destination and automation settings.
type Tenant struct {
	ID                uuid.UUID
	Name              string
	CRMLogin          string
	OperatorPhone     string
	BusinessContext   string
	AutomationEnabled bool
	AutomationMode    AutomationMode
	Provider          MessagingProvider
	LookbackDays      *int
	LastResponseAt    *time.Time
	LastReopenSentAt  *time.Time
}

// Lead is one sales conversation under re-evaluation.
type Lead struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	Phone           string
	StatusID        uuid.UUID
	StatusCode      string
	StatusName      string
	LastMessageAt   *time.Time
	LastEvaluatedAt *time.Time
	CreatedAt       time.Time
}

// MessageSender distinguishes the two sides of a conversation.
type MessageSender string

const (
	// SenderBusiness is the operator side of the conversation.
	SenderBusiness MessageSender = "business"
	// SenderLead is the customer side.
	SenderLead MessageSender = "lead"
)

// ConversationMessage is one message of a lead's transcript, ordered by SentAt.
type ConversationMessage struct {
	ID     uuid.UUID
	LeadID uuid.UUID
	Sender MessageSender
	Body   string
	SentAt time.Time
}

// KeywordRule fires a synchronous status change when its phrase appears often
// enough in business-side messages while the lead sits in the pre status.
// A "{{conversion_value}}" marker inside the phrase makes the matcher capture
// a monetary amount from the text around the match.
type KeywordRule struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PreStatusID    uuid.UUID
	PostStatusID   uuid.UUID
	Phrase         string
	MinOccurrences int
}
