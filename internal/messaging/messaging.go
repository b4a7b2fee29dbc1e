// Package messaging delivers operator-facing messages through the two
// supported channels: the official template/interactive API and the session
// API with inline buttons.
package messaging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"statuspilot_backend/platform/logger"
)

// ButtonTitleLimit is the provider-imposed cap on interactive button titles.
const ButtonTitleLimit = 20

// MaxButtons is the most buttons either provider renders on one message.
const MaxButtons = 3

// Button is one reply option on an outgoing message. ID round-trips through
// the provider untouched and comes back on the webhook.
type Button struct {
	ID    string
	Title string
}

// Sender is the provider-agnostic delivery interface the dispatcher uses.
type Sender interface {
	// SendButtons delivers a free-form message with reply buttons. Only
	// works while the messaging window is open.
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	// SendReopenTemplate delivers the window-reopening template message.
	SendReopenTemplate(ctx context.Context, to string, pendingLeads int) error
}

// SenderOrNil wraps a concrete client as a Sender. A nil client pointer stays
// a nil interface, so provider checks with == nil keep working.
func SenderOrNil[T any, P interface {
	*T
	Sender
}](client P) Sender {
	if client == nil {
		return nil
	}
	return client
}

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	requestTimeout = 15 * time.Second
)

// TruncateTitle trims a button title to the provider limit, rune-safe.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= ButtonTitleLimit {
		return title
	}
	return string(runes[:ButtonTitleLimit-1]) + "…"
}

// doWithRetry runs one provider request up to maxAttempts times, backing off
// between transient failures. 4xx responses other than 429 fail immediately.
func doWithRetry(ctx context.Context, log *logger.Logger, service string, do func() (int, error)) error {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := do()
		if err == nil && status < 300 {
			return nil
		}
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			if err == nil {
				err = fmt.Errorf("%s returned %d", service, status)
			}
			return err
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%s returned %d", service, status)
		}

		if attempt < maxAttempts {
			log.ExternalCallRetry(service, attempt, maxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", service, lastErr)
}
