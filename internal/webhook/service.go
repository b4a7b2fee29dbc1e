package webhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/scheduler"
	"statuspilot_backend/platform/logger"
)

// ReopenButtonID is the static quick-reply payload of the window reopen
// message. Unlike confirmation buttons it carries no record, so the tenant is
// resolved from the operator phone that pressed it.
const ReopenButtonID = "open_24h_window"

// LeadStore is the slice of the analyzer repository the resolver needs.
type LeadStore interface {
	Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error)
	StatusCatalog(ctx context.Context, tenantID uuid.UUID) ([]domain.Status, error)
	UpdateLeadStatus(ctx context.Context, leadID, statusID uuid.UUID) error
}

// CRMUpdater applies status changes upstream. Satisfied by crm.Client.
type CRMUpdater interface {
	ChangeStatus(ctx context.Context, tenantLogin string, leadID, statusID uuid.UUID) error
	SetConversionValue(ctx context.Context, tenantLogin string, leadID uuid.UUID, value float64) error
}

// AnswerStore is the slice of the transition ledger answer resolution needs.
// Satisfied by *ledger.Repository.
type AnswerStore interface {
	RecordAnswer(ctx context.Context, id uuid.UUID, action domain.TransitionAction) (ledger.Record, error)
	SupersedingRecord(ctx context.Context, leadID, excludeID uuid.UUID) (*ledger.Record, error)
}

// WindowRenewer renews a tenant's messaging window. Satisfied by
// *window.Repository.
type WindowRenewer interface {
	Renew(ctx context.Context, tenantID uuid.UUID) error
}

// OperatorDirectory resolves the pressing operator back to a tenant.
// Satisfied by *Repository.
type OperatorDirectory interface {
	TenantIDByOperatorPhone(ctx context.Context, phone string) (uuid.UUID, error)
}

// Service resolves operator button presses into ledger answers and CRM
// updates.
type Service struct {
	records AnswerStore
	windows WindowRenewer
	repo    OperatorDirectory
	store   LeadStore
	crm     CRMUpdater
	enqueue scheduler.DispatchEnqueuer
	log     *logger.Logger
}

func NewService(
	records AnswerStore,
	windows WindowRenewer,
	repo OperatorDirectory,
	store LeadStore,
	crmClient CRMUpdater,
	enqueue scheduler.DispatchEnqueuer,
	log *logger.Logger,
) *Service {
	return &Service{
		records: records,
		windows: windows,
		repo:    repo,
		store:   store,
		crm:     crmClient,
		enqueue: enqueue,
		log:     log,
	}
}

// HandleButton routes one pressed button. senderPhone is the operator phone
// as reported by the provider, digits only.
func (s *Service) HandleButton(ctx context.Context, buttonID, senderPhone string) error {
	if buttonID == ReopenButtonID {
		return s.handleReopen(ctx, senderPhone)
	}

	token, err := parseAnswerToken(buttonID)
	if err != nil {
		return fmt.Errorf("unrecognized button %q: %w", buttonID, err)
	}
	return s.resolveAnswer(ctx, token)
}

// handleReopen renews the messaging window and queues an immediate dispatch
// so pending confirmations go out while the window is fresh.
func (s *Service) handleReopen(ctx context.Context, senderPhone string) error {
	tenantID, err := s.repo.TenantIDByOperatorPhone(ctx, senderPhone)
	if err != nil {
		return fmt.Errorf("resolve reopen sender: %w", err)
	}
	if err := s.windows.Renew(ctx, tenantID); err != nil {
		return err
	}
	s.log.WithTenantID(tenantID.String()).Info("messaging window reopened by operator")

	return s.enqueue.EnqueueDispatchTenant(ctx, scheduler.DispatchTenantPayload{
		TenantID: tenantID.String(),
	})
}

func (s *Service) resolveAnswer(ctx context.Context, token domain.ButtonToken) error {
	rec, err := s.records.RecordAnswer(ctx, token.RecordID, token.Action)
	if err != nil {
		return err
	}
	log := s.log.WithTenantID(rec.TenantID.String()).
		WithLeadID(rec.LeadID.String()).
		WithRecordID(rec.ID.String())

	// Any operator reply proves the conversation is alive.
	if err := s.windows.Renew(ctx, rec.TenantID); err != nil {
		log.DatabaseError("renew messaging window", err)
	}

	// A stale answer targets a record a newer evaluation superseded. It still
	// reflects the operator's intent for that suggestion, so it is applied,
	// with a warning naming the superseding record.
	if newer, err := s.records.SupersedingRecord(ctx, rec.LeadID, rec.ID); err != nil {
		log.DatabaseError("check superseding record", err)
	} else if newer != nil {
		log.Warn("answer applied to superseded confirmation",
			"superseded_by", newer.ID.String())
	}

	switch token.Action {
	case domain.ActionKeep:
		log.Info("operator kept current status")
		return nil

	case domain.ActionChange:
		return s.applyChange(ctx, rec, rec.Context.SuggestedStatusID, rec.Context.SuggestedStatusName, log)

	case domain.ActionReversed:
		return s.applyReversal(ctx, rec, log)

	default:
		return fmt.Errorf("unsupported answer action %q", token.Action)
	}
}

func (s *Service) applyChange(
	ctx context.Context,
	rec ledger.Record,
	statusID uuid.UUID,
	statusName string,
	log *logger.Logger,
) error {
	tenant, err := s.store.Tenant(ctx, rec.TenantID)
	if err != nil {
		return err
	}

	if err := s.crm.ChangeStatus(ctx, tenant.CRMLogin, rec.LeadID, statusID); err != nil {
		return fmt.Errorf("apply status change: %w", err)
	}
	if rec.Context.ConversionValue != nil {
		if err := s.crm.SetConversionValue(ctx, tenant.CRMLogin, rec.LeadID, *rec.Context.ConversionValue); err != nil {
			return fmt.Errorf("apply conversion value: %w", err)
		}
	}
	if err := s.store.UpdateLeadStatus(ctx, rec.LeadID, statusID); err != nil {
		return err
	}

	log.Info("operator confirmed status change", "to", statusName)
	return nil
}

// applyReversal moves the lead to the opposite terminal status of the one
// suggested: a refused "won" suggestion becomes "lost" and vice versa.
func (s *Service) applyReversal(ctx context.Context, rec ledger.Record, log *logger.Logger) error {
	reversalCode := domain.ReversalOf(rec.Context.SuggestedStatusCode)
	if reversalCode == "" {
		return fmt.Errorf("suggested status %q has no reversal", rec.Context.SuggestedStatusCode)
	}

	statuses, err := s.store.StatusCatalog(ctx, rec.TenantID)
	if err != nil {
		return err
	}
	for _, status := range statuses {
		if status.Code == reversalCode {
			return s.applyChange(ctx, rec, status.ID, status.Name, log)
		}
	}
	return fmt.Errorf("tenant has no status with code %q", reversalCode)
}

// parseAnswerToken accepts the canonical token format plus the legacy layout
// older confirmation messages used, action and record separated by a pipe.
func parseAnswerToken(raw string) (domain.ButtonToken, error) {
	token, err := domain.ParseButtonToken(raw)
	if err == nil {
		return token, nil
	}

	parts := strings.Split(strings.TrimSpace(raw), "|")
	if len(parts) != 2 {
		return domain.ButtonToken{}, err
	}
	action, actionErr := domain.ParseTransitionAction(parts[0])
	if actionErr != nil {
		return domain.ButtonToken{}, err
	}
	recordID, idErr := uuid.Parse(parts[1])
	if idErr != nil {
		return domain.ButtonToken{}, err
	}
	return domain.ButtonToken{Action: action, RecordID: recordID}, nil
}
