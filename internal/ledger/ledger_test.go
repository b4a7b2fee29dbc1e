package ledger

import (
	"testing"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
)

func validContext() domain.ConfirmationContext {
	return domain.ConfirmationContext{
		CurrentStatusID:     uuid.New(),
		CurrentStatusCode:   "NEGOTIATING",
		CurrentStatusName:   "Negociando",
		SuggestedStatusID:   uuid.New(),
		SuggestedStatusCode: domain.StatusCodeWon,
		SuggestedStatusName: "Fechado",
		Confidence:          90,
	}
}

func TestInsertParamsNormalize(t *testing.T) {
	t.Run("confirmation defaults to pending", func(t *testing.T) {
		p := InsertParams{
			Executor: ExecutorAI,
			Decision: DecisionConfirmationScheduled,
			Context:  validContext(),
		}
		status, err := p.normalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != domain.MessageStatusPending {
			t.Fatalf("status = %s, want pending", status)
		}
	})

	t.Run("keep defaults to n/a", func(t *testing.T) {
		p := InsertParams{Executor: ExecutorAI, Decision: DecisionKeep}
		status, err := p.normalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != domain.MessageStatusNotApplicable {
			t.Fatalf("status = %s, want n/a", status)
		}
	})

	t.Run("keyword auto update stays n/a", func(t *testing.T) {
		p := InsertParams{
			Executor: ExecutorKeyword,
			Decision: DecisionAutoUpdate,
			Context:  validContext(),
		}
		status, err := p.normalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != domain.MessageStatusNotApplicable {
			t.Fatalf("status = %s, want n/a", status)
		}
	})

	t.Run("pending requires valid context", func(t *testing.T) {
		p := InsertParams{
			Executor: ExecutorAI,
			Decision: DecisionConfirmationScheduled,
		}
		if _, err := p.normalize(); err == nil {
			t.Fatal("expected error for empty confirmation context")
		}
	})

	t.Run("auto update requires valid context", func(t *testing.T) {
		ctx := validContext()
		ctx.SuggestedStatusID = ctx.CurrentStatusID
		p := InsertParams{
			Executor: ExecutorAI,
			Decision: DecisionAutoUpdate,
			Context:  ctx,
		}
		if _, err := p.normalize(); err == nil {
			t.Fatal("expected error when suggested equals current")
		}
	})

	t.Run("unknown executor rejected", func(t *testing.T) {
		p := InsertParams{Executor: "cron", Decision: DecisionKeep}
		if _, err := p.normalize(); err == nil {
			t.Fatal("expected error for unknown executor")
		}
	})
}
