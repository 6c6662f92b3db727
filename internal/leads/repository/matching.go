package repository

import (
	"context"

	"github.com/google/uuid"
)

// Matching queries backing the identity matcher. Each returns leads newest
// first; the matcher layers tier precedence on top. excludeID filters out the
// lead whose own identity is being checked (nil to disable).

// FindByPlanID returns leads with an exact, case-sensitive plan id match.
func (r *Repository) FindByPlanID(ctx context.Context, planID string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findLeads(ctx, `plan_id = $1`, planID, excludeID)
}

// FindByNameAndPhone returns leads matching case-insensitively on first and
// last name together with the normalized phone key.
func (r *Repository) FindByNameAndPhone(ctx context.Context, firstName, lastName, phoneDigits string, excludeID *uuid.UUID) ([]Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2) AND phone_digits = $3`
	args := []any{firstName, lastName, phoneDigits}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += ` AND id <> $4`
	}
	query += ` ORDER BY created_at DESC`

	return r.queryLeads(ctx, query, args...)
}

// FindByPhoneDigits returns leads matching on the normalized phone key alone.
func (r *Repository) FindByPhoneDigits(ctx context.Context, phoneDigits string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findLeads(ctx, `phone_digits = $1`, phoneDigits, excludeID)
}

// FindByTrackingRef returns leads with an exact tracking reference match.
func (r *Repository) FindByTrackingRef(ctx context.Context, trackingRef string, excludeID *uuid.UUID) ([]Lead, error) {
	return r.findLeads(ctx, `tracking_ref = $1`, trackingRef, excludeID)
}

func (r *Repository) findLeads(ctx context.Context, predicate string, value string, excludeID *uuid.UUID) ([]Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + leadColumns + ` FROM leads WHERE ` + predicate
	args := []any{value}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += ` AND id <> $2`
	}
	query += ` ORDER BY created_at DESC`

	return r.queryLeads(ctx, query, args...)
}

func (r *Repository) queryLeads(ctx context.Context, query string, args ...any) ([]Lead, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}
