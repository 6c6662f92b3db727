// Package service implements the alert engine: duplicate detection,
// acknowledgment, and the active-alert flags on leads.
package service

import (
	"context"
	"errors"

	"kitflow_backend/internal/alerts/repository"
	"kitflow_backend/internal/events"
	"kitflow_backend/internal/leads/matching"
	leadrepo "kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/apperr"
	"kitflow_backend/platform/db"
	"kitflow_backend/platform/logger"

	"github.com/google/uuid"
)

// AlertStore is the persistence surface the engine needs for alerts.
type AlertStore interface {
	Create(ctx context.Context, params repository.CreateAlertParams) (repository.Alert, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Alert, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Alert, error)
	Acknowledge(ctx context.Context, id, actorID uuid.UUID) (repository.Alert, bool, error)
	CountUnacknowledged(ctx context.Context, leadID uuid.UUID) (int, error)
}

// LeadStore is the slice of the lead repository the engine touches.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
	SetDuplicateFlag(ctx context.Context, id uuid.UUID, isDuplicate bool) error
	SetActiveAlerts(ctx context.Context, id uuid.UUID, active bool) error
	AppendAuditNote(ctx context.Context, leadID uuid.UUID, note string, actorID *uuid.UUID) error
}

// Matcher resolves a candidate's identity against the lead store.
type Matcher interface {
	Match(ctx context.Context, candidate matching.Candidate) ([]matching.Match, error)
}

// Service is the alert engine.
type Service struct {
	alerts  AlertStore
	leads   LeadStore
	matcher Matcher
	bus     events.Bus
	log     *logger.Logger
}

// New creates an alert service.
func New(alerts AlertStore, leads LeadStore, matcher Matcher, bus events.Bus, log *logger.Logger) *Service {
	return &Service{alerts: alerts, leads: leads, matcher: matcher, bus: bus, log: log}
}

// CheckForDuplicate reruns the identity matcher against the lead's own
// identity fields, excluding itself, and raises a duplicate alert when
// another lead shares its plan identifier. The check is opportunistic and
// fail-open: any failure is logged and treated as "no match" so the read
// path that triggered it is never blocked. Returns the alert when one was
// newly created.
func (s *Service) CheckForDuplicate(ctx context.Context, leadID uuid.UUID) *repository.Alert {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		s.log.Warn("duplicate check skipped: lead read failed", "lead_id", leadID, "error", err)
		return nil
	}

	matches, err := s.matcher.Match(ctx, matching.Candidate{
		PlanID:        lead.PlanID,
		FirstName:     lead.FirstName,
		LastName:      lead.LastName,
		Phone:         lead.Phone,
		ExcludeLeadID: &leadID,
	})
	if err != nil {
		s.log.Warn("duplicate check skipped: matcher failed", "lead_id", leadID, "error", err)
		return nil
	}

	// Only a shared plan identifier counts as a duplicate; weaker tiers
	// (same phone, same name) are common in households.
	if len(matches) == 0 || matches[0].Tier != matching.TierPlanID {
		return nil
	}

	relatedID := matches[0].Lead.ID
	alert, created, err := s.alerts.Create(ctx, repository.CreateAlertParams{
		Type:          repository.TypeDuplicate,
		Severity:      repository.SeverityHigh,
		LeadID:        leadID,
		RelatedLeadID: &relatedID,
	})
	if err != nil {
		s.log.Warn("duplicate check skipped: alert create failed", "lead_id", leadID, "error", err)
		return nil
	}
	if !created {
		// The pair is already alerted; the storage-level uniqueness
		// constraint absorbed the race.
		return nil
	}

	// The alert references both leads, and acknowledgment recomputes both
	// sides, so both carry the flags from the start.
	for _, id := range []uuid.UUID{leadID, relatedID} {
		if err := s.leads.SetDuplicateFlag(ctx, id, true); err != nil {
			s.log.Warn("failed to set duplicate flag", "lead_id", id, "error", err)
		}
		if err := s.leads.SetActiveAlerts(ctx, id, true); err != nil {
			s.log.Warn("failed to set active alerts flag", "lead_id", id, "error", err)
		}
	}

	s.log.AlertEvent("created", leadID.String(), repository.TypeDuplicate)
	s.bus.Publish(ctx, events.AlertCreated{
		BaseEvent:     events.NewBaseEvent(),
		AlertID:       alert.ID,
		LeadID:        leadID,
		RelatedLeadID: &relatedID,
		Type:          alert.Type,
		Severity:      alert.Severity,
	})

	return &alert
}

// Acknowledge marks an alert acknowledged and recomputes the related lead's
// has-active-alerts flag. Acknowledging an already-acknowledged alert is an
// idempotent no-op.
func (s *Service) Acknowledge(ctx context.Context, alertID, actorID uuid.UUID) (repository.Alert, error) {
	alert, acked, err := s.alerts.Acknowledge(ctx, alertID, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Alert{}, apperr.NotFound("alert not found")
	}
	if err != nil {
		return repository.Alert{}, s.storageErr("acknowledge alert", err)
	}
	if !acked {
		return alert, nil
	}

	if err := s.recomputeActiveAlerts(ctx, alert.LeadID); err != nil {
		return repository.Alert{}, err
	}
	if alert.RelatedLeadID != nil {
		if err := s.recomputeActiveAlerts(ctx, *alert.RelatedLeadID); err != nil {
			return repository.Alert{}, err
		}
	}

	s.log.AlertEvent("acknowledged", alert.LeadID.String(), alert.Type)
	return alert, nil
}

// MarkAsDuplicate records an explicit reviewer judgement, independent of
// automatic detection. Acknowledging alerts later does not clear the flag.
func (s *Service) MarkAsDuplicate(ctx context.Context, leadID, actorID uuid.UUID) error {
	if err := s.leads.SetDuplicateFlag(ctx, leadID, true); err != nil {
		if errors.Is(err, leadrepo.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return s.storageErr("mark lead duplicate", err)
	}

	if err := s.leads.AppendAuditNote(ctx, leadID, "marked as duplicate by reviewer", &actorID); err != nil {
		s.log.Warn("failed to record duplicate audit note", "lead_id", leadID, "error", err)
	}
	return nil
}

// ListForLead returns all alerts referencing a lead.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID) ([]repository.Alert, error) {
	alerts, err := s.alerts.ListByLead(ctx, leadID)
	if err != nil {
		return nil, s.storageErr("list alerts", err)
	}
	return alerts, nil
}

func (s *Service) recomputeActiveAlerts(ctx context.Context, leadID uuid.UUID) error {
	count, err := s.alerts.CountUnacknowledged(ctx, leadID)
	if err != nil {
		return s.storageErr("count unacknowledged alerts", err)
	}
	if err := s.leads.SetActiveAlerts(ctx, leadID, count > 0); err != nil {
		return s.storageErr("update active alerts flag", err)
	}
	return nil
}

func (s *Service) storageErr(op string, err error) error {
	s.log.DatabaseError(op, err)
	if db.IsTransient(err) {
		return apperr.Transient("storage temporarily unavailable", err)
	}
	return apperr.Wrap(apperr.KindInternal, "storage failure", err)
}
