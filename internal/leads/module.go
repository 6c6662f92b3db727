// Package leads provides the lead pipeline bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	alertsvc "kitflow_backend/internal/alerts/service"
	"kitflow_backend/internal/events"
	apphttp "kitflow_backend/internal/http"
	"kitflow_backend/internal/leads/assignment"
	"kitflow_backend/internal/leads/handler"
	"kitflow_backend/internal/leads/matching"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/internal/leads/service"
	"kitflow_backend/platform/config"
	"kitflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	repo       *repository.Repository
	matcher    *matching.Matcher
	service    *service.Service
	assignment *assignment.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
// The alert engine is injected from the alerts module so the lead read path
// can run opportunistic duplicate checks.
func NewModule(pool *pgxpool.Pool, alerts *alertsvc.Service, eventBus events.Bus, cfg config.DatabaseConfig, log *logger.Logger) *Module {
	repo := repository.New(pool, cfg.GetStorageTimeout())
	matcher := matching.New(repo)
	svc := service.New(repo, alerts, log)
	assignSvc := assignment.New(repo, eventBus, log)
	h := handler.New(svc, assignSvc)

	return &Module{
		handler:    h,
		repo:       repo,
		matcher:    matcher,
		service:    svc,
		assignment: assignSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository returns the lead repository for other modules' wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Matcher returns the identity matcher for other modules' wiring.
func (m *Module) Matcher() *matching.Matcher {
	return m.matcher
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require authentication
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
