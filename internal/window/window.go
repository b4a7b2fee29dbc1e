// Package window tracks the per-tenant messaging window. Free-form messages
// are only deliverable while the operator has responded recently; outside the
// window only template messages go through.
package window

import "time"

// State classifies a tenant's messaging window.
type State string

const (
	// StateNew means the operator has never responded, so no window ever
	// opened.
	StateNew State = "new"
	// StateOpen means free-form messages are currently deliverable.
	StateOpen State = "open"
	// StateClosed means the window elapsed and must be reopened first.
	StateClosed State = "closed"
)

// Classify returns the window state at instant now. The limit already
// includes the safety margin, so callers treat a nearly-expired window as
// closed rather than racing the provider clock.
func Classify(lastResponseAt *time.Time, limit time.Duration, now time.Time) State {
	if lastResponseAt == nil {
		return StateNew
	}
	if now.Sub(*lastResponseAt) >= limit {
		return StateClosed
	}
	return StateOpen
}

// ReopenSentToday reports whether a reopen message already went out on the
// current local calendar day. Comparison is date-only so a reopen sent late
// in the evening does not block the next morning's.
func ReopenSentToday(lastReopenAt *time.Time, now time.Time, loc *time.Location) bool {
	if lastReopenAt == nil {
		return false
	}
	y1, m1, d1 := lastReopenAt.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
