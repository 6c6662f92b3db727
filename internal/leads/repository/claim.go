package repository

import (
	"context"
	"errors"

	"kitflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClaimAdvocate attempts the exclusive advocate claim as a single atomic
// conditional update. The claimed return is false when the precondition
// (unowned, claimable status) no longer held; the caller re-reads the lead to
// tell "already assigned" apart from "wrong status".
func (r *Repository) ClaimAdvocate(ctx context.Context, leadID, reviewerID uuid.UUID) (Lead, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	lead, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE leads
		SET advocate_id = $2, status = $3, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND advocate_id IS NULL AND status IN ($4, $5)
		RETURNING `+leadColumns,
		leadID, reviewerID,
		domain.StatusAdvocateReview, domain.StatusSubmitted, domain.StatusAdvocateReview,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}

	return lead, true, nil
}

// ClaimCollections attempts the exclusive collections claim, same contract as
// ClaimAdvocate but on collections_agent_id during the collections phase.
func (r *Repository) ClaimCollections(ctx context.Context, leadID, agentID uuid.UUID) (Lead, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	lead, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE leads
		SET collections_agent_id = $2, updated_at = now()
		WHERE id = $1 AND collections_agent_id IS NULL AND status = $3
		RETURNING `+leadColumns,
		leadID, agentID, domain.StatusCollections,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}

	return lead, true, nil
}
