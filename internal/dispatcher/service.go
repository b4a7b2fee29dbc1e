package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/messaging"
	"statuspilot_backend/internal/window"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

// TenantGetter loads tenant settings. Satisfied by analyzer.Repository.
type TenantGetter interface {
	Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error)
}

// Alerter reports tenants whose dispatch keeps failing. Satisfied by
// alerting.Mailer; nil disables alerts.
type Alerter interface {
	DispatchFailed(ctx context.Context, tenantName string, failed int, lastErr error)
}

// RecordStore is the dispatcher's surface on the transition ledger.
// Satisfied by *ledger.Repository.
type RecordStore interface {
	SweepStuckSending(ctx context.Context, staleAfter time.Duration) (int64, error)
	TenantsWithPending(ctx context.Context) ([]ledger.PendingSummary, error)
	PendingLeadCount(ctx context.Context, tenantID uuid.UUID) (int, error)
	ClaimPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]ledger.Record, error)
	RevertToPending(ctx context.Context, id uuid.UUID, lastError *string) error
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// WindowStore tracks the tenant's messaging window. Satisfied by
// *window.Repository.
type WindowStore interface {
	Get(ctx context.Context, tenantID uuid.UUID) (window.Snapshot, error)
	MarkReopenSent(ctx context.Context, tenantID uuid.UUID) error
}

// Service runs dispatch cycles. Two producers call into it: the periodic
// loop and the asynq worker reacting to window-reopen button presses. Both
// funnel into the ledger's atomic claim, so no further locking is needed.
type Service struct {
	records   RecordStore
	windows   WindowStore
	tenants   TenantGetter
	template  messaging.Sender
	session   messaging.Sender
	templates Templates
	alerts    Alerter
	cfg       config.DispatchConfig
	hours     domain.BusinessHours
	log       *logger.Logger
}

// NewService wires a dispatch service. The sender arguments come through
// SenderOrNil so an unconfigured provider stays a nil interface.
func NewService(
	records RecordStore,
	windows WindowStore,
	tenants TenantGetter,
	template messaging.Sender,
	session messaging.Sender,
	templates Templates,
	alerts Alerter,
	cfg config.DispatchConfig,
	hours domain.BusinessHours,
	log *logger.Logger,
) *Service {
	return &Service{
		records:   records,
		windows:   windows,
		tenants:   tenants,
		template:  template,
		session:   session,
		templates: templates,
		alerts:    alerts,
		cfg:       cfg,
		hours:     hours,
		log:       log,
	}
}

// Run executes dispatch cycles on a fixed interval until the context is
// cancelled. Cycles outside business hours are skipped.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GetDispatchInterval())
	defer ticker.Stop()

	for {
		if s.hours.Contains(time.Now()) {
			s.RunCycle(ctx)
		} else {
			s.log.Debug("dispatch cycle skipped outside business hours")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle sweeps stuck rows and dispatches every tenant with queued
// confirmations. A failing tenant never blocks the others.
func (s *Service) RunCycle(ctx context.Context) {
	if swept, err := s.records.SweepStuckSending(ctx, s.cfg.GetSendingStaleAfter()); err != nil {
		s.log.DatabaseError("sweep stuck sending", err)
	} else if swept > 0 {
		s.log.Warn("reclaimed stuck sending records", "count", swept)
	}

	summaries, err := s.records.TenantsWithPending(ctx)
	if err != nil {
		s.log.DatabaseError("list tenants with pending", err)
		return
	}

	for _, summary := range summaries {
		if ctx.Err() != nil {
			return
		}
		if err := s.DispatchTenant(ctx, summary.TenantID); err != nil {
			s.log.WithTenantID(summary.TenantID.String()).Error("dispatch tenant failed", "error", err)
		}
	}
}

// DispatchTenant runs one tenant's dispatch: reopen the window when it is
// closed, otherwise claim and send queued confirmations sequentially.
func (s *Service) DispatchTenant(ctx context.Context, tenantID uuid.UUID) error {
	log := s.log.WithTenantID(tenantID.String())

	tenant, err := s.tenants.Tenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	sender, err := s.senderFor(tenant)
	if err != nil {
		return err
	}

	snap, err := s.windows.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load window: %w", err)
	}

	now := time.Now()
	state := window.Classify(snap.LastResponseAt, s.cfg.GetWindowLimit(), now)
	if state != window.StateOpen {
		return s.reopenWindow(ctx, log, tenant, snap, state, sender, now)
	}

	claimed, err := s.records.ClaimPending(ctx, tenantID, s.cfg.GetClaimBatchSize())
	if err != nil {
		return fmt.Errorf("claim pending: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(s.cfg.GetInterMessageDelay()), 1)
	failed := 0
	var lastErr error
	for _, rec := range claimed {
		if err := limiter.Wait(ctx); err != nil {
			// Shutting down; put unsent work back.
			s.revert(context.WithoutCancel(ctx), rec.ID, err)
			failed++
			lastErr = err
			continue
		}

		body, buttons := RenderConfirmation(rec, s.templates)
		if err := sender.SendButtons(ctx, tenant.OperatorPhone, body, buttons); err != nil {
			log.WithRecordID(rec.ID.String()).Error("send confirmation failed", "error", err)
			s.revert(ctx, rec.ID, err)
			failed++
			lastErr = err
			continue
		}

		if err := s.records.MarkSent(ctx, rec.ID); err != nil {
			log.WithRecordID(rec.ID.String()).DatabaseError("mark sent", err)
			continue
		}
		log.WithRecordID(rec.ID.String()).Info("confirmation sent",
			"lead_id", rec.LeadID.String(),
			"suggested_status", rec.Context.SuggestedStatusName,
		)
	}

	if failed == len(claimed) && s.alerts != nil {
		s.alerts.DispatchFailed(ctx, tenant.Name, failed, lastErr)
	}
	return nil
}

func (s *Service) reopenWindow(
	ctx context.Context,
	log *logger.Logger,
	tenant domain.Tenant,
	snap window.Snapshot,
	state window.State,
	sender messaging.Sender,
	now time.Time,
) error {
	if window.ReopenSentToday(snap.LastReopenSentAt, now, s.hours.Location) {
		log.Debug("window closed, reopen already sent today", "state", string(state))
		return nil
	}

	count, err := s.records.PendingLeadCount(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("pending lead count: %w", err)
	}
	if count == 0 {
		return nil
	}

	if err := sender.SendReopenTemplate(ctx, tenant.OperatorPhone, count); err != nil {
		return fmt.Errorf("send reopen: %w", err)
	}
	if err := s.windows.MarkReopenSent(ctx, tenant.ID); err != nil {
		return fmt.Errorf("mark reopen sent: %w", err)
	}

	log.Info("window reopen message sent", "pending_leads", count, "state", string(state))
	return nil
}

func (s *Service) senderFor(tenant domain.Tenant) (messaging.Sender, error) {
	switch tenant.Provider {
	case domain.ProviderSession:
		if s.session == nil {
			return nil, fmt.Errorf("session provider not configured")
		}
		return s.session, nil
	default:
		if s.template == nil {
			return nil, fmt.Errorf("template provider not configured")
		}
		return s.template, nil
	}
}

func (s *Service) revert(ctx context.Context, id uuid.UUID, cause error) {
	msg := cause.Error()
	if err := s.records.RevertToPending(ctx, id, &msg); err != nil {
		s.log.WithRecordID(id.String()).DatabaseError("revert to pending", err)
	}
}
