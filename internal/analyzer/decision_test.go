package analyzer

import (
	"testing"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
)

func TestDecide(t *testing.T) {
	threshold := 80.0
	current := domain.Status{ID: uuid.New(), Code: "NEGOTIATING", Name: "Negociando"}
	suggested := domain.Status{ID: uuid.New(), Code: "PROPOSAL", Name: "Proposta", AutomationMode: domain.ModeAutoUpdateHighConfidence, MinConfidence: &threshold}
	inherits := domain.Status{ID: uuid.New(), Code: "PROPOSAL", Name: "Proposta", MinConfidence: &threshold}
	confirms := domain.Status{ID: uuid.New(), Code: "PROPOSAL", Name: "Proposta", AutomationMode: domain.ModeAlwaysConfirm}
	terminal := domain.Status{ID: uuid.New(), Code: domain.StatusCodeWon, Name: "Fechado"}
	terminalAuto := domain.Status{ID: uuid.New(), Code: domain.StatusCodeWon, Name: "Fechado", AutomationMode: domain.ModeAutoUpdateHighConfidence}

	tests := []struct {
		name       string
		mode       domain.AutomationMode
		suggested  domain.Status
		confidence float64
		want       ledger.Decision
	}{
		{"same status keeps", domain.ModeAutoUpdateHighConfidence, current, 99, ledger.DecisionKeep},
		{"at threshold auto-updates", domain.ModeAutoUpdateHighConfidence, suggested, 80, ledger.DecisionAutoUpdate},
		{"above threshold auto-updates", domain.ModeAutoUpdateHighConfidence, suggested, 95, ledger.DecisionAutoUpdate},
		{"below threshold schedules", domain.ModeAutoUpdateHighConfidence, suggested, 79.9, ledger.DecisionConfirmationScheduled},
		{"unset mode inherits tenant mode", domain.ModeAutoUpdateHighConfidence, inherits, 95, ledger.DecisionAutoUpdate},
		{"status mode overrides tenant mode", domain.ModeAutoUpdateHighConfidence, confirms, 99, ledger.DecisionConfirmationScheduled},
		{"always confirm schedules", domain.ModeAlwaysConfirm, inherits, 99, ledger.DecisionConfirmationScheduled},
		{"terminal never inherits auto mode", domain.ModeAutoUpdateHighConfidence, terminal, 99, ledger.DecisionConfirmationScheduled},
		{"terminal explicit auto uses default threshold", domain.ModeAlwaysConfirm, terminalAuto, 79, ledger.DecisionConfirmationScheduled},
		{"terminal explicit auto at threshold", domain.ModeAlwaysConfirm, terminalAuto, 80, ledger.DecisionAutoUpdate},
		{"always confirm keeps same status", domain.ModeAlwaysConfirm, current, 50, ledger.DecisionKeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.mode, current, tt.suggested, tt.confidence); got != tt.want {
				t.Fatalf("Decide = %s, want %s", got, tt.want)
			}
		})
	}
}
