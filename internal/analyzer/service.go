package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"statuspilot_backend/internal/classifier"
	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

const (
	maxConcurrentTenants = 4
	maxConcurrentLeads   = 4
)

// Classifier is the LLM suggestion source. Satisfied by classifier.Client.
type Classifier interface {
	Classify(ctx context.Context, req classifier.ClassifyRequest) (*classifier.Suggestion, error)
	MaxTranscriptChars() int
}

// CRMUpdater applies status changes upstream. Satisfied by crm.Client.
type CRMUpdater interface {
	ChangeStatus(ctx context.Context, tenantLogin string, leadID, statusID uuid.UUID) error
	SetConversionValue(ctx context.Context, tenantLogin string, leadID uuid.UUID, value float64) error
}

// Store is the analyzer's read/write surface on the application database.
// Satisfied by *Repository.
type Store interface {
	EligibleLeads(ctx context.Context, p EligibilityParams) ([]domain.Lead, error)
	Tenant(ctx context.Context, tenantID uuid.UUID) (domain.Tenant, error)
	Messages(ctx context.Context, leadID uuid.UUID) ([]domain.ConversationMessage, error)
	StatusCatalog(ctx context.Context, tenantID uuid.UUID) ([]domain.Status, error)
	KeywordRules(ctx context.Context, tenantID uuid.UUID) ([]domain.KeywordRule, error)
	UpdateLeadStatus(ctx context.Context, leadID, statusID uuid.UUID) error
	MarkEvaluated(ctx context.Context, leadID uuid.UUID) error
}

// RecordWriter is the slice of the transition ledger the analyzer writes to.
// Satisfied by *ledger.Repository.
type RecordWriter interface {
	Insert(ctx context.Context, p ledger.InsertParams) (uuid.UUID, error)
	LastEvaluation(ctx context.Context, leadID uuid.UUID, executor ledger.Executor) (*time.Time, error)
}

// Service orchestrates evaluation cycles.
type Service struct {
	repo       Store
	records    RecordWriter
	classifier Classifier
	crm        CRMUpdater
	cfg        config.AnalyzerConfig
	hours      domain.BusinessHours
	log        *logger.Logger
}

// NewService wires an analyzer service.
func NewService(
	repo Store,
	records RecordWriter,
	ai Classifier,
	crmClient CRMUpdater,
	cfg config.AnalyzerConfig,
	hours domain.BusinessHours,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		records:    records,
		classifier: ai,
		crm:        crmClient,
		cfg:        cfg,
		hours:      hours,
		log:        log,
	}
}

// Run executes evaluation cycles on a fixed interval until the context is
// cancelled. Cycles outside business hours are skipped.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GetAnalyzerInterval())
	defer ticker.Stop()

	for {
		if s.hours.Contains(time.Now()) {
			s.RunCycle(ctx)
		} else {
			s.log.Debug("evaluation cycle skipped outside business hours")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle selects eligible leads and evaluates them, tenants in parallel and
// leads within a tenant in parallel, both bounded. One failing lead never
// stops its tenant; one failing tenant never stops the cycle.
func (s *Service) RunCycle(ctx context.Context) {
	leads, err := s.repo.EligibleLeads(ctx, EligibilityParams{
		DefaultLookbackDays: s.cfg.GetDefaultLookbackDays(),
		GracePeriod:         s.cfg.GetLeadGracePeriod(),
		ReprocessInterval:   s.cfg.GetReprocessInterval(),
		ReprocessAwaiting:   s.cfg.GetReprocessIntervalAwaiting(),
		Limit:               s.cfg.GetMaxLeadsPerCycle(),
	})
	if err != nil {
		s.log.DatabaseError("select eligible leads", err)
		return
	}
	if len(leads) == 0 {
		return
	}

	byTenant := make(map[uuid.UUID][]domain.Lead)
	for _, lead := range leads {
		byTenant[lead.TenantID] = append(byTenant[lead.TenantID], lead)
	}
	s.log.Info("evaluation cycle started", "leads", len(leads), "tenants", len(byTenant))

	tenantSem := semaphore.NewWeighted(maxConcurrentTenants)
	var wg sync.WaitGroup
	for tenantID, tenantLeads := range byTenant {
		if err := tenantSem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(tenantID uuid.UUID, tenantLeads []domain.Lead) {
			defer wg.Done()
			defer tenantSem.Release(1)
			s.evaluateTenant(ctx, tenantID, tenantLeads)
		}(tenantID, tenantLeads)
	}
	wg.Wait()
}

func (s *Service) evaluateTenant(ctx context.Context, tenantID uuid.UUID, leads []domain.Lead) {
	log := s.log.WithTenantID(tenantID.String())

	tenant, err := s.repo.Tenant(ctx, tenantID)
	if err != nil {
		log.DatabaseError("load tenant", err)
		return
	}
	statuses, err := s.repo.StatusCatalog(ctx, tenantID)
	if err != nil {
		log.DatabaseError("load status catalog", err)
		return
	}
	rules, err := s.repo.KeywordRules(ctx, tenantID)
	if err != nil {
		log.DatabaseError("load keyword rules", err)
		return
	}

	catalog := newStatusIndex(statuses)

	leadSem := semaphore.NewWeighted(maxConcurrentLeads)
	var wg sync.WaitGroup
	for _, lead := range leads {
		if err := leadSem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(lead domain.Lead) {
			defer wg.Done()
			defer leadSem.Release(1)
			if err := s.evaluateLead(ctx, tenant, catalog, rules, lead); err != nil {
				log.WithLeadID(lead.ID.String()).Error("lead evaluation failed", "error", err)
			}
		}(lead)
	}
	wg.Wait()
}

func (s *Service) evaluateLead(
	ctx context.Context,
	tenant domain.Tenant,
	catalog *statusIndex,
	rules []domain.KeywordRule,
	lead domain.Lead,
) error {
	log := s.log.WithTenantID(tenant.ID.String()).WithLeadID(lead.ID.String())

	messages, err := s.repo.Messages(ctx, lead.ID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		// Audit row so the evaluation is visible even when skipped.
		_, err := s.records.Insert(ctx, ledger.InsertParams{
			TenantID: tenant.ID,
			LeadID:   lead.ID,
			Executor: ledger.ExecutorAI,
			Decision: ledger.DecisionKeep,
			Note:     "lead without messages",
		})
		if err != nil {
			return err
		}
		return s.repo.MarkEvaluated(ctx, lead.ID)
	}

	lead, err = s.runKeywordPhase(ctx, tenant, catalog, rules, lead, messages)
	if err != nil {
		return err
	}

	if err := s.runAIPhase(ctx, tenant, catalog, lead, messages, log); err != nil {
		return err
	}

	return s.repo.MarkEvaluated(ctx, lead.ID)
}

// runKeywordPhase fires keyword rules on business messages newer than the
// last keyword evaluation. Firings update the CRM synchronously and the lead
// carries the final status into the AI phase.
func (s *Service) runKeywordPhase(
	ctx context.Context,
	tenant domain.Tenant,
	catalog *statusIndex,
	rules []domain.KeywordRule,
	lead domain.Lead,
	messages []domain.ConversationMessage,
) (domain.Lead, error) {
	if len(rules) == 0 {
		return lead, nil
	}

	lastKw, err := s.records.LastEvaluation(ctx, lead.ID, ledger.ExecutorKeyword)
	if err != nil {
		return lead, err
	}
	fresh := messages
	if lastKw != nil {
		fresh = nil
		for _, msg := range messages {
			if msg.SentAt.After(*lastKw) {
				fresh = append(fresh, msg)
			}
		}
	}

	matches := MatchKeywords(rules, lead.StatusID, fresh)
	for _, match := range matches {
		pre, okPre := catalog.byID(match.Rule.PreStatusID)
		post, okPost := catalog.byID(match.Rule.PostStatusID)
		if !okPre || !okPost {
			s.log.WithLeadID(lead.ID.String()).Warn("keyword rule references unknown status",
				"rule_id", match.Rule.ID.String())
			continue
		}

		recordCtx := domain.ConfirmationContext{
			CurrentStatusID:     pre.ID,
			CurrentStatusCode:   pre.Code,
			CurrentStatusName:   pre.Name,
			SuggestedStatusID:   post.ID,
			SuggestedStatusCode: post.Code,
			SuggestedStatusName: post.Name,
			LeadName:            lead.Name,
			ConversionValue:     match.ConversionValue,
			Confidence:          100,
		}
		if _, err := s.records.Insert(ctx, ledger.InsertParams{
			TenantID:      tenant.ID,
			LeadID:        lead.ID,
			Executor:      ledger.ExecutorKeyword,
			Decision:      ledger.DecisionAutoUpdate,
			Context:       recordCtx,
			MessageStatus: domain.MessageStatusNotApplicable,
		}); err != nil {
			return lead, err
		}

		if err := s.crm.ChangeStatus(ctx, tenant.CRMLogin, lead.ID, post.ID); err != nil {
			return lead, err
		}
		if match.ConversionValue != nil {
			if err := s.crm.SetConversionValue(ctx, tenant.CRMLogin, lead.ID, *match.ConversionValue); err != nil {
				return lead, err
			}
		}
		if err := s.repo.UpdateLeadStatus(ctx, lead.ID, post.ID); err != nil {
			return lead, err
		}

		lead.StatusID = post.ID
		lead.StatusCode = post.Code
		lead.StatusName = post.Name
	}

	return lead, nil
}

func (s *Service) runAIPhase(
	ctx context.Context,
	tenant domain.Tenant,
	catalog *statusIndex,
	lead domain.Lead,
	messages []domain.ConversationMessage,
	log *logger.Logger,
) error {
	current, ok := catalog.byID(lead.StatusID)
	if !ok {
		log.Warn("lead status not in catalog, skipping")
		return nil
	}

	transcript := BuildTranscript(messages, s.classifier.MaxTranscriptChars())
	suggestion, err := s.classifier.Classify(ctx, classifier.ClassifyRequest{
		Tenant:     tenant,
		Lead:       lead,
		Statuses:   catalog.all,
		Transcript: transcript,
	})
	if err != nil {
		if errors.Is(err, classifier.ErrUnusableResponse) {
			log.Warn("classifier returned unusable response, skipping lead")
			return nil
		}
		return err
	}

	suggested, ok := catalog.byName(suggestion.StatusName)
	if !ok {
		log.Warn("classifier suggested unknown status", "status", suggestion.StatusName)
		return nil
	}

	// A captured conversion value reaches the CRM as soon as the model
	// extracts one, whatever happens to the status afterwards.
	if suggestion.Value != nil {
		if err := s.crm.SetConversionValue(ctx, tenant.CRMLogin, lead.ID, *suggestion.Value); err != nil {
			return err
		}
	}

	decision := Decide(tenant.AutomationMode, current, suggested, suggestion.Confidence)

	leadName := lead.Name
	if suggestion.LeadName != "" {
		leadName = suggestion.LeadName
	}
	recordCtx := domain.ConfirmationContext{
		CurrentStatusID:     current.ID,
		CurrentStatusCode:   current.Code,
		CurrentStatusName:   current.Name,
		SuggestedStatusID:   suggested.ID,
		SuggestedStatusCode: suggested.Code,
		SuggestedStatusName: suggested.Name,
		LeadName:            leadName,
		ConversionValue:     suggestion.Value,
		Confidence:          suggestion.Confidence,
		Analysis:            suggestion.Analysis,
	}

	switch decision {
	case ledger.DecisionKeep:
		_, err := s.records.Insert(ctx, ledger.InsertParams{
			TenantID: tenant.ID,
			LeadID:   lead.ID,
			Executor: ledger.ExecutorAI,
			Decision: ledger.DecisionKeep,
			Note:     suggestion.Analysis,
		})
		return err

	case ledger.DecisionAutoUpdate:
		if _, err := s.records.Insert(ctx, ledger.InsertParams{
			TenantID: tenant.ID,
			LeadID:   lead.ID,
			Executor: ledger.ExecutorAI,
			Decision: ledger.DecisionAutoUpdate,
			Context:  recordCtx,
		}); err != nil {
			return err
		}
		if err := s.crm.ChangeStatus(ctx, tenant.CRMLogin, lead.ID, suggested.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateLeadStatus(ctx, lead.ID, suggested.ID); err != nil {
			return err
		}
		log.Info("status auto-updated",
			"from", current.Name, "to", suggested.Name,
			"confidence", suggestion.Confidence,
		)
		return nil

	default:
		_, err := s.records.Insert(ctx, ledger.InsertParams{
			TenantID: tenant.ID,
			LeadID:   lead.ID,
			Executor: ledger.ExecutorAI,
			Decision: ledger.DecisionConfirmationScheduled,
			Context:  recordCtx,
		})
		if err == nil {
			log.Info("confirmation scheduled",
				"from", current.Name, "to", suggested.Name,
				"confidence", suggestion.Confidence,
			)
		}
		return err
	}
}

// statusIndex resolves statuses by ID and by display name.
type statusIndex struct {
	all     []domain.Status
	idMap   map[uuid.UUID]domain.Status
	nameMap map[string]domain.Status
}

func newStatusIndex(statuses []domain.Status) *statusIndex {
	idx := &statusIndex{
		all:     statuses,
		idMap:   make(map[uuid.UUID]domain.Status, len(statuses)),
		nameMap: make(map[string]domain.Status, len(statuses)),
	}
	for _, status := range statuses {
		idx.idMap[status.ID] = status
		idx.nameMap[normalizeName(status.Name)] = status
	}
	return idx
}

func (i *statusIndex) byID(id uuid.UUID) (domain.Status, bool) {
	status, ok := i.idMap[id]
	return status, ok
}

func (i *statusIndex) byName(name string) (domain.Status, bool) {
	status, ok := i.nameMap[normalizeName(name)]
	return status, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
