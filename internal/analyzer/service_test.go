package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"statuspilot_backend/internal/classifier"
	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/platform/logger"
)

type fakeStore struct {
	leads    []domain.Lead
	tenant   domain.Tenant
	statuses []domain.Status
	rules    []domain.KeywordRule
	messages []domain.ConversationMessage

	statusUpdates []uuid.UUID
	evaluated     []uuid.UUID
}

func (f *fakeStore) EligibleLeads(ctx context.Context, p EligibilityParams) ([]domain.Lead, error) {
	return f.leads, nil
}

func (f *fakeStore) Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error) {
	return f.tenant, nil
}

func (f *fakeStore) Messages(ctx context.Context, leadID uuid.UUID) ([]domain.ConversationMessage, error) {
	return f.messages, nil
}

func (f *fakeStore) StatusCatalog(ctx context.Context, tenantID uuid.UUID) ([]domain.Status, error) {
	return f.statuses, nil
}

func (f *fakeStore) KeywordRules(ctx context.Context, tenantID uuid.UUID) ([]domain.KeywordRule, error) {
	return f.rules, nil
}

func (f *fakeStore) UpdateLeadStatus(ctx context.Context, leadID, statusID uuid.UUID) error {
	f.statusUpdates = append(f.statusUpdates, statusID)
	return nil
}

func (f *fakeStore) MarkEvaluated(ctx context.Context, leadID uuid.UUID) error {
	f.evaluated = append(f.evaluated, leadID)
	return nil
}

type fakeRecordWriter struct {
	inserts []ledger.InsertParams
}

func (f *fakeRecordWriter) Insert(ctx context.Context, p ledger.InsertParams) (uuid.UUID, error) {
	f.inserts = append(f.inserts, p)
	return uuid.New(), nil
}

func (f *fakeRecordWriter) LastEvaluation(ctx context.Context, leadID uuid.UUID, executor ledger.Executor) (*time.Time, error) {
	return nil, nil
}

type fakeClassifier struct {
	suggestion classifier.Suggestion
}

func (f *fakeClassifier) Classify(ctx context.Context, req classifier.ClassifyRequest) (*classifier.Suggestion, error) {
	suggestion := f.suggestion
	return &suggestion, nil
}

func (f *fakeClassifier) MaxTranscriptChars() int { return 100000 }

type fakeCRM struct {
	statusChanges []uuid.UUID
	values        []float64
}

func (f *fakeCRM) ChangeStatus(ctx context.Context, tenantLogin string, leadID, statusID uuid.UUID) error {
	f.statusChanges = append(f.statusChanges, statusID)
	return nil
}

func (f *fakeCRM) SetConversionValue(ctx context.Context, tenantLogin string, leadID uuid.UUID, value float64) error {
	f.values = append(f.values, value)
	return nil
}

type testAnalyzerConfig struct{}

func (testAnalyzerConfig) GetAnalyzerInterval() time.Duration          { return time.Minute }
func (testAnalyzerConfig) GetMaxLeadsPerCycle() int                    { return 50 }
func (testAnalyzerConfig) GetLeadGracePeriod() time.Duration           { return time.Hour }
func (testAnalyzerConfig) GetReprocessInterval() time.Duration         { return 4 * time.Hour }
func (testAnalyzerConfig) GetReprocessIntervalAwaiting() time.Duration { return 24 * time.Hour }
func (testAnalyzerConfig) GetDefaultLookbackDays() int                 { return 60 }

type cycleFixture struct {
	store   *fakeStore
	records *fakeRecordWriter
	crm     *fakeCRM
	service *Service
}

func newCycleFixture(suggestion classifier.Suggestion) *cycleFixture {
	tenantID := uuid.New()
	current := domain.Status{ID: uuid.New(), TenantID: tenantID, Code: "NEW", Name: "Novo"}
	negotiating := domain.Status{ID: uuid.New(), TenantID: tenantID, Code: "NEGOTIATING", Name: "Negociando"}
	lead := domain.Lead{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "Maria",
		StatusID: current.ID,
	}

	store := &fakeStore{
		leads:    []domain.Lead{lead},
		tenant:   domain.Tenant{ID: tenantID, CRMLogin: "acme", AutomationMode: domain.ModeAlwaysConfirm},
		statuses: []domain.Status{current, negotiating},
		messages: []domain.ConversationMessage{
			{ID: uuid.New(), LeadID: lead.ID, Sender: domain.SenderLead, Body: "oi", SentAt: time.Now()},
		},
	}
	records := &fakeRecordWriter{}
	crm := &fakeCRM{}

	service := NewService(
		store,
		records,
		&fakeClassifier{suggestion: suggestion},
		crm,
		testAnalyzerConfig{},
		domain.BusinessHours{StartHour: 0, EndHour: 24, Location: time.UTC},
		logger.New("development"),
	)

	return &cycleFixture{store: store, records: records, crm: crm, service: service}
}

func TestRunCycleForwardsValueOnScheduledConfirmation(t *testing.T) {
	value := 2500.0
	fx := newCycleFixture(classifier.Suggestion{
		StatusName: "Negociando",
		Value:      &value,
		Confidence: 95,
		Analysis:   "cliente citou o valor do contrato",
	})

	fx.service.RunCycle(context.Background())

	if len(fx.crm.values) != 1 || fx.crm.values[0] != value {
		t.Fatalf("conversion values sent %v, want [%v]", fx.crm.values, value)
	}
	if len(fx.crm.statusChanges) != 0 {
		t.Fatalf("status changes %v, want none while a confirmation is scheduled", fx.crm.statusChanges)
	}
	if len(fx.records.inserts) != 1 || fx.records.inserts[0].Decision != ledger.DecisionConfirmationScheduled {
		t.Fatalf("inserts %+v, want one scheduled confirmation", fx.records.inserts)
	}
	if len(fx.store.evaluated) != 1 {
		t.Fatal("lead must be marked evaluated")
	}
}

func TestRunCycleForwardsValueOnKeepDecision(t *testing.T) {
	value := 800.0
	fx := newCycleFixture(classifier.Suggestion{
		StatusName: "Novo",
		Value:      &value,
		Confidence: 90,
		Analysis:   "sem evidência de avanço",
	})

	fx.service.RunCycle(context.Background())

	if len(fx.crm.values) != 1 || fx.crm.values[0] != value {
		t.Fatalf("conversion values sent %v, want [%v]", fx.crm.values, value)
	}
	if len(fx.crm.statusChanges) != 0 {
		t.Fatalf("status changes %v, want none on keep", fx.crm.statusChanges)
	}
	if len(fx.records.inserts) != 1 || fx.records.inserts[0].Decision != ledger.DecisionKeep {
		t.Fatalf("inserts %+v, want one keep record", fx.records.inserts)
	}
}

func TestRunCycleNoValueSendsNothing(t *testing.T) {
	fx := newCycleFixture(classifier.Suggestion{
		StatusName: "Negociando",
		Confidence: 95,
		Analysis:   "negociação em andamento",
	})

	fx.service.RunCycle(context.Background())

	if len(fx.crm.values) != 0 {
		t.Fatalf("conversion values sent %v, want none", fx.crm.values)
	}
}

func TestStatusIndexLookup(t *testing.T) {
	won := domain.Status{ID: uuid.New(), Code: domain.StatusCodeWon, Name: "FINALIZADO - Ganhou"}
	open := domain.Status{ID: uuid.New(), Code: "NEGOTIATING", Name: "Em Negociação"}
	idx := newStatusIndex([]domain.Status{won, open})

	if got, ok := idx.byID(open.ID); !ok || got.Code != "NEGOTIATING" {
		t.Fatalf("byID returned %+v, %v", got, ok)
	}
	if _, ok := idx.byID(uuid.New()); ok {
		t.Fatal("byID matched unknown id")
	}

	// Name resolution ignores case and surrounding whitespace.
	if got, ok := idx.byName("  em negociação "); !ok || got.ID != open.ID {
		t.Fatalf("byName returned %+v, %v", got, ok)
	}
	if got, ok := idx.byName("FINALIZADO - GANHOU"); !ok || got.ID != won.ID {
		t.Fatalf("byName returned %+v, %v", got, ok)
	}
	if _, ok := idx.byName("Inexistente"); ok {
		t.Fatal("byName matched unknown status")
	}
}
