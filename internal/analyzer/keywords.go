package analyzer

import (
	"strings"

	"github.com/google/uuid"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/platform/textnorm"
)

// ConversionValueMarker inside a rule phrase makes a firing capture a money
// amount from the matching message.
const ConversionValueMarker = "{{conversion_value}}"

// KeywordMatch is one rule firing in event order.
type KeywordMatch struct {
	Rule            domain.KeywordRule
	ConversionValue *float64
}

// MatchKeywords walks business-side messages in event order and fires every
// rule whose phrase occurs often enough while the lead sits in the rule's pre
// status. A firing moves the lead to the rule's post status, so later
// messages are matched against rules chained off that status. Occurrence
// counts accumulate across messages and a firing consumes the occurrences it
// needed, so every occurrence fires at most once even when rules form a
// cycle.
func MatchKeywords(rules []domain.KeywordRule, startStatusID uuid.UUID, messages []domain.ConversationMessage) []KeywordMatch {
	current := startStatusID
	counts := make(map[uuid.UUID]int)
	var matches []KeywordMatch

	for _, msg := range messages {
		if msg.Sender != domain.SenderBusiness {
			continue
		}
		counted := make(map[uuid.UUID]bool)

		// A firing can enable further rules on the same message, so rescan
		// until the status settles. Each message is counted at most once per
		// rule and each firing consumes the occurrences it needed, so the
		// rescan always terminates.
		for {
			fired := false
			for _, rule := range rules {
				if rule.PreStatusID != current {
					continue
				}
				phrase, captures := splitMarker(rule.Phrase)
				if !counted[rule.ID] {
					counts[rule.ID] += textnorm.CountOccurrences(msg.Body, phrase)
					counted[rule.ID] = true
				}

				needed := rule.MinOccurrences
				if needed < 1 {
					needed = 1
				}
				if counts[rule.ID] < needed {
					continue
				}
				counts[rule.ID] -= needed

				match := KeywordMatch{Rule: rule}
				if captures {
					if value, ok := textnorm.ParseMoney(msg.Body); ok && value > 0 {
						match.ConversionValue = &value
					}
				}
				matches = append(matches, match)
				current = rule.PostStatusID
				fired = true
				break
			}
			if !fired {
				break
			}
		}
	}

	return matches
}

// FinalStatusID returns the status the lead lands on after the matches, or
// startStatusID when nothing fired.
func FinalStatusID(startStatusID uuid.UUID, matches []KeywordMatch) uuid.UUID {
	if len(matches) == 0 {
		return startStatusID
	}
	return matches[len(matches)-1].Rule.PostStatusID
}

func splitMarker(phrase string) (string, bool) {
	if !strings.Contains(phrase, ConversionValueMarker) {
		return phrase, false
	}
	return strings.TrimSpace(strings.ReplaceAll(phrase, ConversionValueMarker, " ")), true
}
