package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestReversalOf(t *testing.T) {
	if got := ReversalOf(StatusCodeWon); got != StatusCodeLost {
		t.Fatalf("expected %s, got %s", StatusCodeLost, got)
	}
	if got := ReversalOf(StatusCodeLost); got != StatusCodeWon {
		t.Fatalf("expected %s, got %s", StatusCodeWon, got)
	}
	if got := ReversalOf("NEGOTIATING"); got != "" {
		t.Fatalf("non-terminal code should have no reversal, got %s", got)
	}
}

func TestAutoUpdateThreshold(t *testing.T) {
	custom := 65.0

	tests := []struct {
		name   string
		status Status
		want   float64
	}{
		{"configured wins", Status{Code: "NEGOTIATING", MinConfidence: &custom}, 65},
		{"default non-terminal", Status{Code: "NEGOTIATING"}, 80},
		{"default terminal", Status{Code: StatusCodeWon}, 80},
		{"configured terminal wins", Status{Code: StatusCodeLost, MinConfidence: &custom}, 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.AutoUpdateThreshold(); got != tt.want {
				t.Fatalf("threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecisionMode(t *testing.T) {
	tests := []struct {
		name          string
		status        Status
		tenantDefault AutomationMode
		want          AutomationMode
	}{
		{"own mode wins", Status{Code: "PROPOSAL", AutomationMode: ModeAlwaysConfirm}, ModeAutoUpdateHighConfidence, ModeAlwaysConfirm},
		{"unset inherits tenant", Status{Code: "PROPOSAL"}, ModeAutoUpdateHighConfidence, ModeAutoUpdateHighConfidence},
		{"unset terminal never inherits auto", Status{Code: StatusCodeWon}, ModeAutoUpdateHighConfidence, ModeAlwaysConfirm},
		{"terminal own mode wins", Status{Code: StatusCodeLost, AutomationMode: ModeAutoUpdateHighConfidence}, ModeAlwaysConfirm, ModeAutoUpdateHighConfidence},
		{"both unset confirms", Status{Code: "PROPOSAL"}, "", ModeAlwaysConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.DecisionMode(tt.tenantDefault); got != tt.want {
				t.Fatalf("mode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMessageStatusTransitions(t *testing.T) {
	tests := []struct {
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{MessageStatusPending, MessageStatusSending, true},
		{MessageStatusPending, MessageStatusIgnored, true},
		{MessageStatusSending, MessageStatusSent, true},
		{MessageStatusSending, MessageStatusPending, true},
		{MessageStatusSent, MessageStatusAnswered, true},
		{MessageStatusSent, MessageStatusIgnored, true},
		{MessageStatusIgnored, MessageStatusAnswered, true},
		{MessageStatusPending, MessageStatusSent, false},
		{MessageStatusAnswered, MessageStatusPending, false},
		{MessageStatusIgnored, MessageStatusSending, false},
		{MessageStatusNotApplicable, MessageStatusSending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Fatalf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionSources(t *testing.T) {
	answered := TransitionSources(MessageStatusAnswered)
	if len(answered) != 2 || answered[0] != MessageStatusSent || answered[1] != MessageStatusIgnored {
		t.Fatalf("sources of answered = %v, want [sent ignored]", answered)
	}

	ignored := TransitionSources(MessageStatusIgnored)
	if len(ignored) != 2 || ignored[0] != MessageStatusPending || ignored[1] != MessageStatusSent {
		t.Fatalf("sources of ignored = %v, want [pending sent]", ignored)
	}

	if sources := TransitionSources(MessageStatusNotApplicable); len(sources) != 0 {
		t.Fatalf("n/a must be unreachable, got %v", sources)
	}
}

func TestParseTransitionAction(t *testing.T) {
	if action, err := ParseTransitionAction(" keep "); err != nil || action != ActionKeep {
		t.Fatalf("expected KEEP, got %v (%v)", action, err)
	}
	if _, err := ParseTransitionAction("DELETE"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestConfirmationContextValidate(t *testing.T) {
	current := uuid.New()
	suggested := uuid.New()

	valid := ConfirmationContext{
		CurrentStatusID:     current,
		CurrentStatusCode:   "NEGOTIATING",
		CurrentStatusName:   "Negociando",
		SuggestedStatusID:   suggested,
		SuggestedStatusCode: StatusCodeWon,
		SuggestedStatusName: "Fechado",
		Confidence:          92,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid context, got %v", err)
	}
	if !valid.OffersReversal() {
		t.Fatal("terminal suggestion must offer reversal")
	}

	missing := valid
	missing.SuggestedStatusID = uuid.Nil
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for missing suggested status id")
	}

	same := valid
	same.SuggestedStatusID = current
	if err := same.Validate(); err == nil {
		t.Fatal("expected error when suggested equals current")
	}

	badConfidence := valid
	badConfidence.Confidence = 140
	if err := badConfidence.Validate(); err == nil {
		t.Fatal("expected error for confidence out of range")
	}

	negValue := valid
	bad := -10.0
	negValue.ConversionValue = &bad
	if err := negValue.Validate(); err == nil {
		t.Fatal("expected error for negative conversion value")
	}

	nonTerminal := valid
	nonTerminal.SuggestedStatusCode = "NEGOTIATING"
	if nonTerminal.OffersReversal() {
		t.Fatal("non-terminal suggestion must not offer reversal")
	}
}
