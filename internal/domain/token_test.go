package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestButtonTokenRoundTrip(t *testing.T) {
	token := ButtonToken{Action: ActionChange, RecordID: uuid.New()}

	parsed, err := ParseButtonToken(token.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != token {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, token)
	}
}

func TestParseButtonTokenRejectsBadInput(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name string
		raw  string
	}{
		{"wrong version", "v2:KEEP:" + id},
		{"unknown action", "v1:DELETE:" + id},
		{"bad uuid", "v1:KEEP:not-a-uuid"},
		{"too few segments", "v1:KEEP"},
		{"too many segments", "v1:KEEP:" + id + ":extra"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseButtonToken(tt.raw); err == nil {
				t.Fatalf("expected error for %q", tt.raw)
			}
		})
	}
}
