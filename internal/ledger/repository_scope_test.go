package ledger

import (
	"strings"
	"testing"

	"statuspilot_backend/internal/domain"
)

func requireFragments(t *testing.T, query string, fragments []string) {
	t.Helper()
	lowered := strings.ToLower(query)
	for _, fragment := range fragments {
		if !strings.Contains(lowered, fragment) {
			t.Fatalf("query is missing %q:\n%s", fragment, query)
		}
	}
}

func TestClaimPendingQueryLocksAndSkips(t *testing.T) {
	requireFragments(t, claimPendingQuery, []string{
		"for update of t skip locked",
		"partition by lead_id",
		"message_status = 'pending'",
	})

	// The final UPDATE re-checks the state so a row that changed between the
	// ranking and the lock is never claimed.
	lowered := strings.ToLower(claimPendingQuery)
	if !strings.Contains(lowered, "l.message_status = 'pending'") {
		t.Fatalf("claim update does not re-check the pending state:\n%s", claimPendingQuery)
	}
}

func TestClaimPendingQueryTakesNewestPerLead(t *testing.T) {
	requireFragments(t, claimPendingQuery, []string{
		"order by message_schedule_date desc, created_at desc",
	})
}

func TestRevertToPendingQueryPreservesSentAt(t *testing.T) {
	requireFragments(t, revertToPendingQuery, []string{
		"message_status = 'pending'",
		"claimed_at = null",
		"and message_status = 'sending'",
	})
	if strings.Contains(strings.ToLower(revertToPendingQuery), "sent_at") {
		t.Fatalf("revert must not touch sent_at:\n%s", revertToPendingQuery)
	}
}

func TestSweepStuckSendingQueryOnlyTouchesStaleSending(t *testing.T) {
	requireFragments(t, sweepStuckSendingQuery, []string{
		"message_status = 'sending'",
		"claimed_at < now() - make_interval(secs => $1)",
	})
}

func TestAnswerGuardMatchesLifecycleMap(t *testing.T) {
	want := statusInList(domain.TransitionSources(domain.MessageStatusAnswered))
	if !strings.Contains(recordAnswerQuery, "message_status IN ("+want+")") {
		t.Fatalf("answer guard does not match the lifecycle map, want IN (%s):\n%s", want, recordAnswerQuery)
	}
	if !strings.Contains(want, "'ignored'") {
		t.Fatalf("superseded records must stay answerable, got %s", want)
	}
}

func TestSupersedeGuardMatchesLifecycleMap(t *testing.T) {
	want := statusInList(domain.TransitionSources(domain.MessageStatusIgnored))
	if !strings.Contains(supersedeOthersQuery, "message_status IN ("+want+")") {
		t.Fatalf("supersede guard does not match the lifecycle map, want IN (%s):\n%s", want, supersedeOthersQuery)
	}
	if strings.Contains(want, "'answered'") {
		t.Fatalf("an answered record must never be superseded, got %s", want)
	}
}
