package analyzer

import (
	"strings"

	"statuspilot_backend/internal/domain"
)

const (
	transcriptBusinessLabel = "Vendedor"
	transcriptLeadLabel     = "Lead"
	transcriptTimeLayout    = "2006-01-02 15:04"
)

// BuildTranscript renders the conversation oldest-first for the classifier
// prompt. When the rendered text would exceed maxChars, whole messages are
// dropped from the oldest end: recent messages carry the signal.
func BuildTranscript(messages []domain.ConversationMessage, maxChars int) string {
	if len(messages) == 0 {
		return ""
	}

	lines := make([]string, len(messages))
	total := 0
	for i, msg := range messages {
		label := transcriptLeadLabel
		if msg.Sender == domain.SenderBusiness {
			label = transcriptBusinessLabel
		}
		line := "[" + msg.SentAt.Format(transcriptTimeLayout) + "] " + label + ": " + strings.TrimSpace(msg.Body)
		lines[i] = line
		total += len(line) + 1
	}

	start := 0
	for start < len(lines)-1 && maxChars > 0 && total > maxChars {
		total -= len(lines[start]) + 1
		start++
	}

	return strings.Join(lines[start:], "\n")
}
