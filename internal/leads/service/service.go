// Package service handles lead management operations: intake, reads with
// opportunistic duplicate checking, and status/disposition updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	alertrepo "kitflow_backend/internal/alerts/repository"
	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/internal/leads/transport"
	"kitflow_backend/platform/apperr"
	"kitflow_backend/platform/db"
	"kitflow_backend/platform/logger"
	"kitflow_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Repository is the data access surface the management service needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	IncrementContactAttempts(ctx context.Context, id uuid.UUID) (int, error)
	AppendAuditNote(ctx context.Context, leadID uuid.UUID, note string, actorID *uuid.UUID) error
}

// AlertEngine is the alert surface the lead read/update paths use.
type AlertEngine interface {
	CheckForDuplicate(ctx context.Context, leadID uuid.UUID) *alertrepo.Alert
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]alertrepo.Alert, error)
	MarkAsDuplicate(ctx context.Context, leadID, actorID uuid.UUID) error
}

// Service handles lead management operations.
type Service struct {
	repo   Repository
	alerts AlertEngine
	log    *logger.Logger
}

// New creates a lead management service.
func New(repo Repository, alerts AlertEngine, log *logger.Logger) *Service {
	return &Service{repo: repo, alerts: alerts, log: log}
}

// Create creates a new lead at the start of the pipeline.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	planID := domain.NormalizePlanID(req.PlanID)
	if !domain.IsValidPlanID(planID) {
		return transport.LeadResponse{}, apperr.Validation("malformed plan identifier")
	}

	normalized := phone.NormalizeE164(req.Phone)
	params := repository.CreateLeadParams{
		PlanID:      planID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       normalized,
		PhoneDigits: phone.MatchKey(normalized),
		TestType:    req.TestType,
		Status:      domain.StatusSubmitted,
	}

	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("invalid date of birth")
		}
		params.DateOfBirth = &dob
	}

	lead, err := s.repo.Create(ctx, params)
	if errors.Is(err, repository.ErrDuplicatePlanID) {
		return transport.LeadResponse{}, apperr.Conflict("plan identifier already exists")
	}
	if err != nil {
		return transport.LeadResponse{}, s.storageErr("create lead", err)
	}

	return transport.ToLeadResponse(lead), nil
}

// GetDetail retrieves a lead with its alerts. The read opportunistically
// reruns duplicate detection; a newly created alert rides along in the
// response, and a detection failure never blocks the read.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (transport.LeadDetailResponse, error) {
	var (
		newAlert *alertrepo.Alert
		lead     repository.Lead
	)

	// The duplicate check and the lead read are independent; run them
	// concurrently. ListForLead waits so a fresh alert shows up in the list.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		newAlert = s.alerts.CheckForDuplicate(gctx, id)
		return nil
	})
	g.Go(func() error {
		var err error
		lead, err = s.repo.GetByID(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadDetailResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadDetailResponse{}, s.storageErr("read lead", err)
	}

	alerts, err := s.alerts.ListForLead(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}

	detail := transport.LeadDetailResponse{
		Lead:   transport.ToLeadResponse(lead),
		Alerts: toAlertSummaries(alerts),
	}
	if newAlert != nil {
		summary := toAlertSummary(*newAlert)
		detail.NewAlert = &summary
	}

	return detail, nil
}

// List returns leads matching the filter.
func (s *Service) List(ctx context.Context, params repository.ListLeadsParams) ([]transport.LeadResponse, error) {
	leads, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, s.storageErr("list leads", err)
	}
	return transport.ToLeadResponses(leads), nil
}

// Update applies a reviewer update. A disposition always derives the status
// through the single disposition table; a caller-supplied status alongside it
// is flagged as a conflict in the response, never silently dropped. An
// explicit status without a disposition is validated against the actor's
// role allow-list and rejected, not coerced, when disallowed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest, actorID uuid.UUID, roles []string) (transport.UpdateLeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.UpdateLeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.UpdateLeadResponse{}, s.storageErr("read lead", err)
	}

	params := repository.UpdateLeadParams{TestType: req.TestType}
	resp := transport.UpdateLeadResponse{}

	switch {
	case req.Disposition != nil:
		derived, ok := domain.StatusForDisposition(*req.Disposition)
		if !ok {
			return transport.UpdateLeadResponse{}, apperr.Validation("unknown disposition " + *req.Disposition)
		}
		if domain.IsTerminalStatus(lead.Status) {
			return transport.UpdateLeadResponse{}, apperr.Validation("lead is in terminal status " + lead.Status)
		}

		params.Disposition = req.Disposition
		params.Status = &derived

		if req.Status != nil && *req.Status != derived {
			resp.StatusConflict = true
			resp.RequestedStatus = req.Status
			s.log.Warn("caller status overridden by disposition",
				"lead_id", id, "requested", *req.Status, "derived", derived)
		}

	case req.Status != nil:
		if !domain.CanTransition(roles, lead.Status, *req.Status) {
			return transport.UpdateLeadResponse{}, apperr.Validation(
				fmt.Sprintf("transition %s -> %s not allowed for role", lead.Status, *req.Status))
		}
		params.Status = req.Status
	}

	updated, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.UpdateLeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.UpdateLeadResponse{}, s.storageErr("update lead", err)
	}

	if params.Status != nil && *params.Status != lead.Status {
		note := fmt.Sprintf("status %s -> %s", lead.Status, *params.Status)
		if params.Disposition != nil {
			note += " (disposition " + *params.Disposition + ")"
		}
		if err := s.repo.AppendAuditNote(ctx, id, note, &actorID); err != nil {
			s.log.Warn("failed to record status audit note", "lead_id", id, "error", err)
		}
	}

	resp.Lead = transport.ToLeadResponse(updated)
	return resp, nil
}

// RecordContactAttempt increments the lead's contact-attempt counter.
func (s *Service) RecordContactAttempt(ctx context.Context, id uuid.UUID) (transport.ContactAttemptResponse, error) {
	attempts, err := s.repo.IncrementContactAttempts(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ContactAttemptResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.ContactAttemptResponse{}, s.storageErr("record contact attempt", err)
	}

	return transport.ContactAttemptResponse{LeadID: id, ContactAttempts: attempts}, nil
}

// MarkDuplicate records an explicit reviewer duplicate judgement.
func (s *Service) MarkDuplicate(ctx context.Context, id, actorID uuid.UUID) error {
	return s.alerts.MarkAsDuplicate(ctx, id, actorID)
}

// AlertsForLead returns the alerts referencing a lead.
func (s *Service) AlertsForLead(ctx context.Context, id uuid.UUID) ([]transport.AlertSummary, error) {
	alerts, err := s.alerts.ListForLead(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAlertSummaries(alerts), nil
}

func toAlertSummary(a alertrepo.Alert) transport.AlertSummary {
	return transport.AlertSummary{
		ID:            a.ID,
		Type:          a.Type,
		Severity:      a.Severity,
		LeadID:        a.LeadID,
		RelatedLeadID: a.RelatedLeadID,
		Acknowledged:  a.Acknowledged,
		CreatedAt:     a.CreatedAt,
	}
}

func toAlertSummaries(alerts []alertrepo.Alert) []transport.AlertSummary {
	out := make([]transport.AlertSummary, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertSummary(a))
	}
	return out
}

func (s *Service) storageErr(op string, err error) error {
	s.log.DatabaseError(op, err)
	if db.IsTransient(err) {
		return apperr.Transient("storage temporarily unavailable", err)
	}
	return apperr.Wrap(apperr.KindInternal, "storage failure", err)
}
