// Package webhook terminates messaging-provider callbacks: subscription
// handshakes, signature checks, button payload parsing and answer resolution.
package webhook

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/scheduler"
	"statuspilot_backend/internal/window"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
	"statuspilot_backend/platform/validator"
)

// Module encapsulates webhook setup and route registration.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule wires the webhook module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	records *ledger.Repository,
	windows *window.Repository,
	store LeadStore,
	crmClient CRMUpdater,
	enqueue scheduler.DispatchEnqueuer,
	dedup *Deduper,
	archive *Archive,
	cfg config.WebhookConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := NewRepository(pool)
	service := NewService(records, windows, repo, store, crmClient, enqueue, log)
	handler := NewHandler(service, dedup, archive, cfg, val, log)

	return &Module{handler: handler, cfg: cfg, log: log}
}

// RegisterRoutes mounts the provider callback endpoints.
func (m *Module) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/webhooks")

	template := group.Group("/template")
	template.GET("", m.handler.VerifyTemplate)
	template.POST("", VerifyTemplateSignature(m.cfg.GetTemplateAppSecret(), m.log), m.handler.ReceiveTemplate)

	session := group.Group("/session")
	session.POST("", VerifySessionToken(m.cfg.GetSessionReceiveToken(), m.log), m.handler.ReceiveSession)
}
