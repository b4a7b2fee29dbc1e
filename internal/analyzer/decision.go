// Package analyzer runs the re-evaluation loop: it selects eligible leads,
// matches keyword rules, asks the classifier for a suggestion and decides
// what to do with it.
package analyzer

import (
	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
)

// Decide maps a classifier suggestion onto a ledger decision. The automation
// policy is the suggested status's own, with the tenant mode as fallback for
// non-terminal statuses. The confidence threshold is inclusive: a suggestion
// exactly at the status threshold auto-updates.
func Decide(tenantMode domain.AutomationMode, current, suggested domain.Status, confidence float64) ledger.Decision {
	if suggested.ID == current.ID {
		return ledger.DecisionKeep
	}
	mode := suggested.DecisionMode(tenantMode)
	if mode == domain.ModeAutoUpdateHighConfidence && confidence >= suggested.AutoUpdateThreshold() {
		return ledger.DecisionAutoUpdate
	}
	return ledger.DecisionConfirmationScheduled
}
