// Package assignment grants exclusive ownership of an unassigned lead to a
// reviewer via a single atomic conditional update.
package assignment

import (
	"context"
	"errors"

	"kitflow_backend/internal/events"
	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/apperr"
	"kitflow_backend/platform/db"
	"kitflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome is the result of a claim attempt. "Already assigned" and "already
// yours" are ordinary results the caller branches on, not errors.
type Outcome string

const (
	// OutcomeClaimed means the reviewer won the claim.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeAlreadyOwn means the requesting reviewer already owns the
	// lead; the call is an idempotent no-op.
	OutcomeAlreadyOwn Outcome = "already_own"
	// OutcomeAlreadyAssigned means a different reviewer owns the lead.
	OutcomeAlreadyAssigned Outcome = "already_assigned"
)

// ClaimResult reports a claim attempt. OwnerID is populated for
// OutcomeAlreadyAssigned so the caller can surface the current owner.
type ClaimResult struct {
	Outcome Outcome
	Lead    repository.Lead
	OwnerID *uuid.UUID
}

// Repository is the data access surface the assignment engine needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ClaimAdvocate(ctx context.Context, leadID, reviewerID uuid.UUID) (repository.Lead, bool, error)
	ClaimCollections(ctx context.Context, leadID, agentID uuid.UUID) (repository.Lead, bool, error)
}

// Service is the assignment engine.
type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates an assignment service.
func New(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Claim attempts the exclusive advocate claim. Exactly one of two concurrent
// claims on the same unassigned lead wins; the loser sees the precondition
// fail on the conditional update and gets OutcomeAlreadyAssigned, never a
// silent overwrite.
func (s *Service) Claim(ctx context.Context, leadID, reviewerID uuid.UUID) (ClaimResult, error) {
	lead, claimed, err := s.repo.ClaimAdvocate(ctx, leadID, reviewerID)
	if err != nil {
		return ClaimResult{}, s.storageErr("claim lead", err)
	}

	if claimed {
		s.bus.Publish(ctx, events.LeadClaimed{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     leadID,
			ReviewerID: reviewerID,
			Phase:      "advocate",
		})
		return ClaimResult{Outcome: OutcomeClaimed, Lead: lead}, nil
	}

	// The conditional update matched nothing: re-read to find out why.
	return s.resolveLostClaim(ctx, leadID, reviewerID, advocateOwner, claimableByAdvocate)
}

// ClaimCollections attempts the exclusive collections claim. Same contract as
// Claim, applied to collectionsAgentId during the collections phase.
func (s *Service) ClaimCollections(ctx context.Context, leadID, agentID uuid.UUID) (ClaimResult, error) {
	lead, claimed, err := s.repo.ClaimCollections(ctx, leadID, agentID)
	if err != nil {
		return ClaimResult{}, s.storageErr("claim lead for collections", err)
	}

	if claimed {
		s.bus.Publish(ctx, events.LeadClaimed{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     leadID,
			ReviewerID: agentID,
			Phase:      "collections",
		})
		return ClaimResult{Outcome: OutcomeClaimed, Lead: lead}, nil
	}

	return s.resolveLostClaim(ctx, leadID, agentID, collectionsOwner, claimableByCollections)
}

func advocateOwner(lead repository.Lead) *uuid.UUID {
	return lead.AdvocateID
}

func collectionsOwner(lead repository.Lead) *uuid.UUID {
	return lead.CollectionsAgentID
}

func claimableByAdvocate(status string) bool {
	return status == domain.StatusSubmitted || status == domain.StatusAdvocateReview
}

func claimableByCollections(status string) bool {
	return status == domain.StatusCollections
}

func (s *Service) resolveLostClaim(ctx context.Context, leadID, reviewerID uuid.UUID, owner func(repository.Lead) *uuid.UUID, claimable func(string) bool) (ClaimResult, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return ClaimResult{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return ClaimResult{}, s.storageErr("read lead after claim", err)
	}

	if ownerID := owner(lead); ownerID != nil {
		if *ownerID == reviewerID {
			return ClaimResult{Outcome: OutcomeAlreadyOwn, Lead: lead}, nil
		}
		return ClaimResult{Outcome: OutcomeAlreadyAssigned, Lead: lead, OwnerID: ownerID}, nil
	}

	if !claimable(lead.Status) {
		return ClaimResult{}, apperr.Validation("lead is not claimable in status " + lead.Status)
	}

	// Unowned and claimable, yet the conditional update missed: the owner
	// released between our write and read. Report the race as lost.
	return ClaimResult{Outcome: OutcomeAlreadyAssigned, Lead: lead}, nil
}

func (s *Service) storageErr(op string, err error) error {
	s.log.DatabaseError(op, err)
	if db.IsTransient(err) {
		return apperr.Transient("storage temporarily unavailable", err)
	}
	return apperr.Wrap(apperr.KindInternal, "storage failure", err)
}
