// Package alerting sends ops email alerts when dispatch for a tenant keeps
// failing after retries.
package alerting

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

// Mailer sends plain-text alert emails over SMTP.
type Mailer struct {
	client *mail.Client
	from   string
	to     string
	log    *logger.Logger
}

// NewMailer creates the alert mailer, or nil when alerting is not configured.
// A nil Mailer is safe to call; alerts become log lines.
func NewMailer(cfg config.AlertConfig, log *logger.Logger) (*Mailer, error) {
	if !cfg.IsAlertingEnabled() {
		return nil, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.GetAlertSMTPPort()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.GetAlertSMTPUser() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.GetAlertSMTPUser()),
			mail.WithPassword(cfg.GetAlertSMTPPassword()),
		)
	}

	client, err := mail.NewClient(cfg.GetAlertSMTPHost(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create alert mail client: %w", err)
	}

	return &Mailer{
		client: client,
		from:   cfg.GetAlertFromAddress(),
		to:     cfg.GetAlertToAddress(),
		log:    log,
	}, nil
}

// DispatchFailed reports a tenant whose dispatch cycle exhausted retries.
func (m *Mailer) DispatchFailed(ctx context.Context, tenantName string, failed int, lastErr error) {
	subject := fmt.Sprintf("[statuspilot] dispatch failing for %s", tenantName)
	body := fmt.Sprintf(
		"Dispatch for tenant %q failed for %d message(s) after all retries.\n\nLast error:\n%v\n",
		tenantName, failed, lastErr,
	)
	m.send(ctx, subject, body)
}

func (m *Mailer) send(ctx context.Context, subject, body string) {
	if m == nil || m.client == nil {
		return
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		m.log.Error("alert mail from address", "error", err)
		return
	}
	if err := msg.To(m.to); err != nil {
		m.log.Error("alert mail to address", "error", err)
		return
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		m.log.Error("alert mail send failed", "error", err)
	}
}
