// Package alerts provides the alert engine bounded context module.
package alerts

import (
	"kitflow_backend/internal/alerts/handler"
	"kitflow_backend/internal/alerts/repository"
	"kitflow_backend/internal/alerts/service"
	"kitflow_backend/internal/events"
	apphttp "kitflow_backend/internal/http"
	"kitflow_backend/internal/leads/matching"
	leadrepo "kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/config"
	"kitflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the alerts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the alerts module. It builds its own
// lead store and identity matcher over the shared pool; the duplicate check
// only reads leads and flips flags, so sharing a repository instance with the
// leads module is unnecessary.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg config.DatabaseConfig, log *logger.Logger) *Module {
	alertRepo := repository.New(pool, cfg.GetStorageTimeout())
	leadStore := leadrepo.New(pool, cfg.GetStorageTimeout())
	matcher := matching.New(leadStore)
	svc := service.New(alertRepo, leadStore, matcher, eventBus, log)

	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "alerts"
}

// Service returns the alert engine for other modules' wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts alerts routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	alertsGroup := ctx.Protected.Group("/alerts")
	m.handler.RegisterRoutes(alertsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
