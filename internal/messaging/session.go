package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
	"statuspilot_backend/platform/phone"
)

// SessionClient talks to the session message API (provider B). Session
// messages carry inline button lists and need no pre-approved templates, but
// the same 24h window rules apply on the provider side.
type SessionClient struct {
	baseURL     string
	clientToken string
	http        *http.Client
	log         *logger.Logger
}

// NewSessionClient creates a provider B client, or nil when unconfigured.
func NewSessionClient(cfg config.SessionMessagingConfig, log *logger.Logger) *SessionClient {
	if cfg.GetSessionAPIURL() == "" {
		return nil
	}
	return &SessionClient{
		baseURL:     strings.TrimRight(cfg.GetSessionAPIURL(), "/"),
		clientToken: cfg.GetSessionClientToken(),
		http:        &http.Client{Timeout: requestTimeout},
		log:         log,
	}
}

type sessionButtonPayload struct {
	Phone      string         `json:"phone"`
	Message    string         `json:"message"`
	ButtonList sessionButtons `json:"buttonList"`
}

type sessionButtons struct {
	Buttons []sessionButton `json:"buttons"`
}

type sessionButton struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SendButtons delivers a session message with an inline button list.
func (c *SessionClient) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if c == nil {
		return fmt.Errorf("session client not configured")
	}
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}

	payload := sessionButtonPayload{
		Phone:   phone.Digits(to),
		Message: body,
	}
	for _, btn := range buttons {
		payload.ButtonList.Buttons = append(payload.ButtonList.Buttons, sessionButton{
			ID:    btn.ID,
			Label: TruncateTitle(btn.Title),
		})
	}

	return doWithRetry(ctx, c.log, "session-api", func() (int, error) {
		return c.post(ctx, "/send-button-list", payload)
	})
}

type sessionTextPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendReopenTemplate delivers the reopen message as plain text. The session
// provider has no template concept; its gateway accepts business-initiated
// text, and the count keeps the wording informative.
func (c *SessionClient) SendReopenTemplate(ctx context.Context, to string, pendingLeads int) error {
	if c == nil {
		return fmt.Errorf("session client not configured")
	}

	payload := sessionTextPayload{
		Phone: phone.Digits(to),
		Message: fmt.Sprintf(
			"Você tem %d lead(s) aguardando confirmação de status. Responda esta mensagem para receber as confirmações.",
			pendingLeads,
		),
	}

	return doWithRetry(ctx, c.log, "session-api", func() (int, error) {
		return c.post(ctx, "/send-text", payload)
	})
}

func (c *SessionClient) post(ctx context.Context, path string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Token", c.clientToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("session api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
