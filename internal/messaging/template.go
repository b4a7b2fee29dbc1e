package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
	"statuspilot_backend/platform/phone"
)

// ReopenTemplateName is the pre-approved template used to reopen the window.
const ReopenTemplateName = "confirmacoes_pendentes"

// TemplateClient talks to the official graph-style message API (provider A).
type TemplateClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// NewTemplateClient creates a provider A client, or nil when unconfigured.
func NewTemplateClient(cfg config.TemplateMessagingConfig, log *logger.Logger) *TemplateClient {
	if cfg.GetTemplateAPIURL() == "" {
		return nil
	}
	return &TemplateClient{
		baseURL: strings.TrimRight(cfg.GetTemplateAPIURL(), "/"),
		token:   cfg.GetTemplateAPIToken(),
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

type interactivePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveBody `json:"interactive"`
}

type interactiveBody struct {
	Type   string            `json:"type"`
	Body   interactiveText   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveText struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons []interactiveButton `json:"buttons"`
}

type interactiveButton struct {
	Type        string      `json:"type"`
	ReplyButton replyButton `json:"reply"`
}

type replyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendButtons delivers an interactive reply-button message.
func (c *TemplateClient) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if c == nil {
		return fmt.Errorf("template client not configured")
	}
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}

	payload := interactivePayload{
		MessagingProduct: "whatsapp",
		To:               phone.Digits(to),
		Type:             "interactive",
		Interactive: interactiveBody{
			Type: "button",
			Body: interactiveText{Text: body},
		},
	}
	for _, btn := range buttons {
		payload.Interactive.Action.Buttons = append(payload.Interactive.Action.Buttons, interactiveButton{
			Type:        "reply",
			ReplyButton: replyButton{ID: btn.ID, Title: TruncateTitle(btn.Title)},
		})
	}

	return doWithRetry(ctx, c.log, "template-api", func() (int, error) {
		return c.post(ctx, payload)
	})
}

type templatePayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         templateBody `json:"template"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters,omitempty"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendReopenTemplate delivers the pre-approved reopen template carrying the
// count of leads awaiting confirmation. Templates go through even when the
// window is closed.
func (c *TemplateClient) SendReopenTemplate(ctx context.Context, to string, pendingLeads int) error {
	if c == nil {
		return fmt.Errorf("template client not configured")
	}

	payload := templatePayload{
		MessagingProduct: "whatsapp",
		To:               phone.Digits(to),
		Type:             "template",
		Template: templateBody{
			Name:     ReopenTemplateName,
			Language: templateLanguage{Code: "pt_BR"},
			Components: []templateComponent{{
				Type: "body",
				Parameters: []templateParameter{{
					Type: "text",
					Text: strconv.Itoa(pendingLeads),
				}},
			}},
		},
	}

	return doWithRetry(ctx, c.log, "template-api", func() (int, error) {
		return c.post(ctx, payload)
	})
}

func (c *TemplateClient) post(ctx context.Context, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("template api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
