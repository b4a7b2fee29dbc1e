package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/messaging"
	"statuspilot_backend/internal/window"
	"statuspilot_backend/platform/logger"
)

type fakeRecordStore struct {
	claimed      []ledger.Record
	pendingLeads int

	claimCalls int
	reverted   []uuid.UUID
	markedSent []uuid.UUID
}

func (f *fakeRecordStore) SweepStuckSending(ctx context.Context, staleAfter time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeRecordStore) TenantsWithPending(ctx context.Context) ([]ledger.PendingSummary, error) {
	return nil, nil
}

func (f *fakeRecordStore) PendingLeadCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return f.pendingLeads, nil
}

func (f *fakeRecordStore) ClaimPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]ledger.Record, error) {
	f.claimCalls++
	out := f.claimed
	f.claimed = nil
	return out, nil
}

func (f *fakeRecordStore) RevertToPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	f.reverted = append(f.reverted, id)
	return nil
}

func (f *fakeRecordStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	f.markedSent = append(f.markedSent, id)
	return nil
}

type fakeWindowStore struct {
	snap           window.Snapshot
	reopenMarked   int
	reopenMarkedAt time.Time
}

func (f *fakeWindowStore) Get(ctx context.Context, tenantID uuid.UUID) (window.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeWindowStore) MarkReopenSent(ctx context.Context, tenantID uuid.UUID) error {
	f.reopenMarked++
	f.reopenMarkedAt = time.Now()
	now := f.reopenMarkedAt
	f.snap.LastReopenSentAt = &now
	return nil
}

type fakeTenantGetter struct {
	tenant domain.Tenant
}

func (f *fakeTenantGetter) Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error) {
	return f.tenant, nil
}

type fakeSender struct {
	buttonsSent  []string
	reopenCounts []int
	failSends    int
}

func (f *fakeSender) SendButtons(ctx context.Context, to, body string, buttons []messaging.Button) error {
	if f.failSends > 0 {
		f.failSends--
		return errors.New("provider unavailable")
	}
	f.buttonsSent = append(f.buttonsSent, body)
	return nil
}

func (f *fakeSender) SendReopenTemplate(ctx context.Context, to string, pendingLeads int) error {
	f.reopenCounts = append(f.reopenCounts, pendingLeads)
	return nil
}

type fakeAlerter struct {
	calls  int
	failed int
}

func (f *fakeAlerter) DispatchFailed(ctx context.Context, tenantName string, failed int, lastErr error) {
	f.calls++
	f.failed = failed
}

type testDispatchConfig struct{}

func (testDispatchConfig) GetDispatchInterval() time.Duration  { return time.Minute }
func (testDispatchConfig) GetClaimBatchSize() int              { return 20 }
func (testDispatchConfig) GetInterMessageDelay() time.Duration { return time.Millisecond }
func (testDispatchConfig) GetSendingStaleAfter() time.Duration { return 10 * time.Minute }
func (testDispatchConfig) GetWindowLimit() time.Duration       { return 23 * time.Hour }
func (testDispatchConfig) GetTemplateFile() string             { return "" }

func newTestService(records *fakeRecordStore, windows *fakeWindowStore, sender *fakeSender, alerts Alerter) *Service {
	tenantID := uuid.New()
	return NewService(
		records,
		windows,
		&fakeTenantGetter{tenant: domain.Tenant{ID: tenantID, Name: "Acme", OperatorPhone: "5511999990000"}},
		sender,
		sender,
		DefaultTemplates(),
		alerts,
		testDispatchConfig{},
		domain.BusinessHours{StartHour: 0, EndHour: 24, Location: time.UTC},
		logger.New("development"),
	)
}

func claimedRecord() ledger.Record {
	return ledger.Record{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		LeadID:        uuid.New(),
		MessageStatus: domain.MessageStatusSending,
		Context: domain.ConfirmationContext{
			CurrentStatusID:     uuid.New(),
			CurrentStatusName:   "Negociando",
			SuggestedStatusID:   uuid.New(),
			SuggestedStatusCode: domain.StatusCodeWon,
			SuggestedStatusName: "Fechado",
			Confidence:          90,
		},
	}
}

func TestDispatchTenantClosedWindowSendsOneReopen(t *testing.T) {
	lastResponse := time.Now().Add(-48 * time.Hour)
	records := &fakeRecordStore{pendingLeads: 3}
	windows := &fakeWindowStore{snap: window.Snapshot{LastResponseAt: &lastResponse}}
	sender := &fakeSender{}
	service := newTestService(records, windows, sender, nil)
	tenantID := uuid.New()

	if err := service.DispatchTenant(context.Background(), tenantID); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}

	if len(sender.reopenCounts) != 1 || sender.reopenCounts[0] != 3 {
		t.Fatalf("reopen sends = %v, want one with 3 pending leads", sender.reopenCounts)
	}
	if windows.reopenMarked != 1 {
		t.Fatalf("reopen marked %d times", windows.reopenMarked)
	}
	if records.claimCalls != 0 {
		t.Fatal("must not claim confirmations while the window is closed")
	}

	// Second cycle on the same day: the reopen already went out.
	if err := service.DispatchTenant(context.Background(), tenantID); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}
	if len(sender.reopenCounts) != 1 {
		t.Fatalf("reopen sends = %v, want still one", sender.reopenCounts)
	}
}

func TestDispatchTenantClosedWindowNoPendingSkipsReopen(t *testing.T) {
	records := &fakeRecordStore{pendingLeads: 0}
	windows := &fakeWindowStore{snap: window.Snapshot{}}
	sender := &fakeSender{}
	service := newTestService(records, windows, sender, nil)

	if err := service.DispatchTenant(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}
	if len(sender.reopenCounts) != 0 {
		t.Fatal("reopen must not go out with nothing queued")
	}
}

func TestDispatchTenantMarksSentOnSuccess(t *testing.T) {
	lastResponse := time.Now().Add(-time.Hour)
	rec := claimedRecord()
	records := &fakeRecordStore{claimed: []ledger.Record{rec}}
	windows := &fakeWindowStore{snap: window.Snapshot{LastResponseAt: &lastResponse}}
	sender := &fakeSender{}
	service := newTestService(records, windows, sender, nil)

	if err := service.DispatchTenant(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}

	if len(records.markedSent) != 1 || records.markedSent[0] != rec.ID {
		t.Fatalf("marked sent %v, want [%s]", records.markedSent, rec.ID)
	}
	if len(records.reverted) != 0 {
		t.Fatalf("unexpected reverts %v", records.reverted)
	}
}

func TestDispatchTenantRevertsFailedSendsAndAlerts(t *testing.T) {
	lastResponse := time.Now().Add(-time.Hour)
	rec1, rec2 := claimedRecord(), claimedRecord()
	records := &fakeRecordStore{claimed: []ledger.Record{rec1, rec2}}
	windows := &fakeWindowStore{snap: window.Snapshot{LastResponseAt: &lastResponse}}
	sender := &fakeSender{failSends: 2}
	alerts := &fakeAlerter{}
	service := newTestService(records, windows, sender, alerts)

	if err := service.DispatchTenant(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}

	if len(records.reverted) != 2 {
		t.Fatalf("reverted %v, want both records back in the queue", records.reverted)
	}
	if len(records.markedSent) != 0 {
		t.Fatalf("marked sent %v, want none", records.markedSent)
	}
	if alerts.calls != 1 || alerts.failed != 2 {
		t.Fatalf("alert calls=%d failed=%d, want one alert covering both", alerts.calls, alerts.failed)
	}
}

func TestDispatchTenantPartialFailureDoesNotAlert(t *testing.T) {
	lastResponse := time.Now().Add(-time.Hour)
	rec1, rec2 := claimedRecord(), claimedRecord()
	records := &fakeRecordStore{claimed: []ledger.Record{rec1, rec2}}
	windows := &fakeWindowStore{snap: window.Snapshot{LastResponseAt: &lastResponse}}
	sender := &fakeSender{failSends: 1}
	alerts := &fakeAlerter{}
	service := newTestService(records, windows, sender, alerts)

	if err := service.DispatchTenant(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DispatchTenant: %v", err)
	}

	if len(records.reverted) != 1 || len(records.markedSent) != 1 {
		t.Fatalf("reverted=%v sent=%v, want one each", records.reverted, records.markedSent)
	}
	if alerts.calls != 0 {
		t.Fatal("alert must only fire when every send failed")
	}
}
