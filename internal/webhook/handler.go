package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"statuspilot_backend/platform/apperr"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
	"statuspilot_backend/platform/validator"
)

// Handler terminates provider webhooks: verification handshakes, payload
// parsing and deduplication. Resolution is delegated to the Service.
type Handler struct {
	service *Service
	dedup   *Deduper
	archive *Archive
	cfg     config.WebhookConfig
	val     *validator.Validator
	log     *logger.Logger
}

func NewHandler(service *Service, dedup *Deduper, archive *Archive, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		dedup:   dedup,
		archive: archive,
		cfg:     cfg,
		val:     val,
		log:     log,
	}
}

// templatePayload mirrors the template provider's delivery envelope, reduced
// to the fields button resolution needs.
type templatePayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []templateMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type templateMessage struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Type        string `json:"type"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

// buttonID extracts the pressed button from either message shape the
// provider sends: interactive replies for buttons we attach ourselves, and
// the legacy shape for quick replies defined on approved templates.
func (m templateMessage) buttonID() string {
	if m.Interactive != nil && m.Interactive.ButtonReply != nil {
		return m.Interactive.ButtonReply.ID
	}
	if m.Button != nil {
		return m.Button.Payload
	}
	return ""
}

// VerifyTemplate answers the provider's subscription handshake.
func (h *Handler) VerifyTemplate(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.cfg.GetTemplateVerifyToken() {
		c.Status(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveTemplate handles template-provider deliveries. The provider retries
// until it sees 200, so processing failures are logged and acknowledged.
func (h *Handler) ReceiveTemplate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	log := h.log.WithContext(c.Request.Context())

	h.archive.Store(c.Request.Context(), "template", body)

	var payload templatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("unparseable template webhook payload", "error", err)
		c.Status(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.processButton(c.Request.Context(), log, "template", msg.ID, msg.buttonID(), msg.From)
			}
		}
	}
	c.Status(http.StatusOK)
}

// sessionPayload mirrors the session provider's button reply delivery.
type sessionPayload struct {
	MessageID              string              `json:"messageId"`
	Phone                  string              `json:"phone" validate:"required"`
	ButtonsResponseMessage *sessionButtonReply `json:"buttonsResponseMessage"`
}

type sessionButtonReply struct {
	ButtonID string `json:"buttonId" validate:"required"`
	Message  string `json:"message"`
}

// ReceiveSession handles session-provider deliveries.
func (h *Handler) ReceiveSession(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	log := h.log.WithContext(c.Request.Context())

	h.archive.Store(c.Request.Context(), "session", body)

	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("unparseable session webhook payload", "error", err)
		c.Status(http.StatusOK)
		return
	}

	if payload.ButtonsResponseMessage != nil {
		if err := h.val.Struct(payload); err != nil {
			log.Warn("session webhook payload failed validation", "error", err)
			c.Status(http.StatusOK)
			return
		}
		h.processButton(c.Request.Context(), log, "session",
			payload.MessageID, payload.ButtonsResponseMessage.ButtonID, payload.Phone)
	}
	c.Status(http.StatusOK)
}

func (h *Handler) processButton(ctx context.Context, log *logger.Logger, provider, messageID, buttonID, senderPhone string) {
	if buttonID == "" {
		return
	}

	seen, err := h.dedup.Seen(ctx, provider, messageID)
	if err != nil {
		log.Error("webhook dedup check failed", "provider", provider, "error", err)
	} else if seen {
		log.Debug("duplicate webhook delivery dropped", "provider", provider, "message_id", messageID)
		return
	}

	if err := h.service.HandleButton(ctx, buttonID, senderPhone); err != nil {
		// An already-answered record means a redelivered or late press, not a
		// fault worth paging on.
		if apperr.Is(err, apperr.KindConflict) {
			log.Warn("button press on a settled confirmation",
				"provider", provider,
				"button", buttonID,
				"error", err,
			)
			return
		}
		log.Error("button resolution failed",
			"provider", provider,
			"button", buttonID,
			"error", err,
		)
	}
}
