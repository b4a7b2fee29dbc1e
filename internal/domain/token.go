package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ButtonTokenVersion is the canonical encoding version for button payloads.
const ButtonTokenVersion = "v1"

// ButtonToken identifies which action on which transition record a pressed
// button means. Both message providers carry it as the button ID. Every field
// comes from a closed set, so the separator can never appear inside one.
type ButtonToken struct {
	Action   TransitionAction
	RecordID uuid.UUID
}

// Encode renders the canonical v1 form "v1:ACTION:uuid".
func (t ButtonToken) Encode() string {
	return ButtonTokenVersion + ":" + string(t.Action) + ":" + t.RecordID.String()
}

// ParseButtonToken parses the canonical form. Legacy provider payloads are
// handled by their webhook parsers, not here.
func ParseButtonToken(raw string) (ButtonToken, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return ButtonToken{}, fmt.Errorf("button token: expected 3 segments, got %d", len(parts))
	}
	if parts[0] != ButtonTokenVersion {
		return ButtonToken{}, fmt.Errorf("button token: unsupported version %q", parts[0])
	}

	action, err := ParseTransitionAction(parts[1])
	if err != nil {
		return ButtonToken{}, fmt.Errorf("button token: %w", err)
	}
	recordID, err := uuid.Parse(parts[2])
	if err != nil {
		return ButtonToken{}, fmt.Errorf("button token: bad record id: %w", err)
	}

	return ButtonToken{Action: action, RecordID: recordID}, nil
}
