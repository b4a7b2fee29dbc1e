// Package domain provides core business rules for lead status re-evaluation.
package domain

import "github.com/google/uuid"

// Status codes with special meaning. All other codes are tenant-defined and
// carry no built-in behavior. Business rules key off Code, never off the
// display name, which is presentation-only.
const (
	StatusCodeWon  = "END_WON"
	StatusCodeLost = "END_LOST"
)

// terminalStatusCodes are codes where the deal outcome is final. Leads in a
// terminal status leave the evaluation loop; a wrong terminal call is undone
// through the confirmation message's reversal button.
var terminalStatusCodes = map[string]bool{
	StatusCodeWon:  true,
	StatusCodeLost: true,
}

// reversalCodes maps a terminal code to its opposite outcome.
var reversalCodes = map[string]string{
	StatusCodeWon:  StatusCodeLost,
	StatusCodeLost: StatusCodeWon,
}

// IsTerminalStatus returns true when the code represents a final deal outcome.
func IsTerminalStatus(code string) bool {
	return terminalStatusCodes[code]
}

// ReversalOf returns the opposite terminal code, or "" when code is not terminal.
func ReversalOf(code string) string {
	return reversalCodes[code]
}

// AutomationMode controls what the decision engine does with an AI suggestion.
type AutomationMode string

const (
	// ModeAlwaysConfirm schedules an operator confirmation for every change.
	ModeAlwaysConfirm AutomationMode = "always_confirm"
	// ModeAutoUpdateHighConfidence applies the suggestion directly when the
	// classifier confidence reaches the status threshold.
	ModeAutoUpdateHighConfidence AutomationMode = "auto_update_high_confidence"
)

// IsValid reports whether the mode is one of the known automation modes.
func (m AutomationMode) IsValid() bool {
	return m == ModeAlwaysConfirm || m == ModeAutoUpdateHighConfidence
}

// DefaultMinConfidence is the auto-update threshold used when a status does
// not configure its own.
const DefaultMinConfidence = 80.0

// Status is one entry of a tenant's status catalog.
type Status struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Code           string
	Name           string
	Description    string
	AutomationMode AutomationMode
	MinConfidence  *float64
}

// IsTerminal returns true when this status is a final deal outcome.
func (s Status) IsTerminal() bool {
	return IsTerminalStatus(s.Code)
}

// DecisionMode returns the automation policy applied to changes into this
// status: the status's own mode when configured, otherwise the tenant
// default. Terminal statuses with no mode of their own always require an
// operator confirmation, whatever the tenant default says, so a deal is
// never closed without a human pressing the button.
func (s Status) DecisionMode(tenantDefault AutomationMode) AutomationMode {
	if s.AutomationMode.IsValid() {
		return s.AutomationMode
	}
	if s.IsTerminal() || !tenantDefault.IsValid() {
		return ModeAlwaysConfirm
	}
	return tenantDefault
}

// AutoUpdateThreshold returns the configured minimum confidence for applying
// a change into this status without confirmation, falling back to the
// default.
func (s Status) AutoUpdateThreshold() float64 {
	if s.MinConfidence != nil {
		return *s.MinConfidence
	}
	return DefaultMinConfidence
}
