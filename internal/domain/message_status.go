package domain

// MessageStatus is the delivery lifecycle of a confirmation request attached
// to a transition record.
type MessageStatus string

const (
	// MessageStatusPending means the confirmation is queued for dispatch.
	MessageStatusPending MessageStatus = "pending"
	// MessageStatusSending means a dispatcher has claimed the row.
	MessageStatusSending MessageStatus = "sending"
	// MessageStatusSent means the confirmation reached the operator.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusAnswered means the operator pressed a button.
	MessageStatusAnswered MessageStatus = "answered"
	// MessageStatusIgnored means a newer evaluation superseded this record.
	MessageStatusIgnored MessageStatus = "ignored"
	// MessageStatusNotApplicable marks records that never need an operator
	// message, such as keyword-executed synchronous updates.
	MessageStatusNotApplicable MessageStatus = "n/a"
)

var legalMessageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusPending: {MessageStatusSending, MessageStatusIgnored},
	MessageStatusSending: {MessageStatusSent, MessageStatusPending},
	MessageStatusSent:    {MessageStatusAnswered, MessageStatusIgnored},
	// A superseded confirmation can still be answered: the stale press
	// reflects the operator's intent for that suggestion.
	MessageStatusIgnored: {MessageStatusAnswered},
}

// messageStatusOrder fixes the iteration order for TransitionSources.
var messageStatusOrder = []MessageStatus{
	MessageStatusPending,
	MessageStatusSending,
	MessageStatusSent,
	MessageStatusAnswered,
	MessageStatusIgnored,
	MessageStatusNotApplicable,
}

// CanTransition reports whether moving from s to target is a legal lifecycle
// step. Answered and n/a are terminal.
func (s MessageStatus) CanTransition(target MessageStatus) bool {
	for _, allowed := range legalMessageTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which target is directly
// reachable, in a stable order. The ledger repository derives its SQL state
// guards from this, keeping the lifecycle map the single source of truth.
func TransitionSources(target MessageStatus) []MessageStatus {
	var sources []MessageStatus
	for _, s := range messageStatusOrder {
		if s.CanTransition(target) {
			sources = append(sources, s)
		}
	}
	return sources
}
