// Package matching resolves whether a candidate record refers to an existing
// lead. It is read-only: no matcher call ever mutates the store.
package matching

import (
	"context"

	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Tier identifies which precedence tier produced a match. Lower values carry
// higher confidence.
type Tier int

const (
	// TierPlanID is an exact, case-sensitive plan identifier match.
	TierPlanID Tier = iota + 1
	// TierNamePhone matches case-insensitive first+last name plus the
	// normalized phone key.
	TierNamePhone
	// TierPhone matches on the normalized phone key alone.
	TierPhone
	// TierTrackingRef is an exact tracking reference match. Only the
	// reconciliation path enables it.
	TierTrackingRef
)

// String names the tier for logs and audit notes.
func (t Tier) String() string {
	switch t {
	case TierPlanID:
		return "plan_id"
	case TierNamePhone:
		return "name_phone"
	case TierPhone:
		return "phone"
	case TierTrackingRef:
		return "tracking_ref"
	default:
		return "none"
	}
}

// Candidate carries whatever identity fields the caller has. Blank fields are
// excluded from matching.
type Candidate struct {
	PlanID      string
	FirstName   string
	LastName    string
	Phone       string
	TrackingRef string

	// IncludeTrackingRef enables the tracking-reference tier; only
	// reconciliation sets it.
	IncludeTrackingRef bool

	// ExcludeLeadID drops this lead from all tiers, used when a lead's own
	// identity is checked against the rest of the store.
	ExcludeLeadID *uuid.UUID
}

// Match is one resolved lead, ranked by tier confidence.
type Match struct {
	Lead repository.Lead
	Tier Tier
}

// Store is the read-only query surface the matcher needs.
type Store interface {
	FindByPlanID(ctx context.Context, planID string, excludeID *uuid.UUID) ([]repository.Lead, error)
	FindByNameAndPhone(ctx context.Context, firstName, lastName, phoneDigits string, excludeID *uuid.UUID) ([]repository.Lead, error)
	FindByPhoneDigits(ctx context.Context, phoneDigits string, excludeID *uuid.UUID) ([]repository.Lead, error)
	FindByTrackingRef(ctx context.Context, trackingRef string, excludeID *uuid.UUID) ([]repository.Lead, error)
}

// Matcher applies strict tier precedence: the first non-empty tier wins and
// later tiers are never consulted. An empty result is a normal outcome, not
// an error.
type Matcher struct {
	store Store
}

// New creates an identity matcher over the given store.
func New(store Store) *Matcher {
	return &Matcher{store: store}
}

// Match resolves the candidate against the lead store.
func (m *Matcher) Match(ctx context.Context, candidate Candidate) ([]Match, error) {
	planID := domain.NormalizePlanID(candidate.PlanID)
	if planID != "" {
		leads, err := m.store.FindByPlanID(ctx, planID, candidate.ExcludeLeadID)
		if err != nil {
			return nil, err
		}
		if len(leads) > 0 {
			return toMatches(leads, TierPlanID), nil
		}
	}

	phoneKey := phone.MatchKey(candidate.Phone)
	if candidate.FirstName != "" && candidate.LastName != "" && phoneKey != "" {
		leads, err := m.store.FindByNameAndPhone(ctx, candidate.FirstName, candidate.LastName, phoneKey, candidate.ExcludeLeadID)
		if err != nil {
			return nil, err
		}
		if len(leads) > 0 {
			return toMatches(leads, TierNamePhone), nil
		}
	}

	if phoneKey != "" {
		leads, err := m.store.FindByPhoneDigits(ctx, phoneKey, candidate.ExcludeLeadID)
		if err != nil {
			return nil, err
		}
		if len(leads) > 0 {
			return toMatches(leads, TierPhone), nil
		}
	}

	if candidate.IncludeTrackingRef && candidate.TrackingRef != "" {
		leads, err := m.store.FindByTrackingRef(ctx, candidate.TrackingRef, candidate.ExcludeLeadID)
		if err != nil {
			return nil, err
		}
		if len(leads) > 0 {
			return toMatches(leads, TierTrackingRef), nil
		}
	}

	return nil, nil
}

func toMatches(leads []repository.Lead, tier Tier) []Match {
	matches := make([]Match, 0, len(leads))
	for _, lead := range leads {
		matches = append(matches, Match{Lead: lead, Tier: tier})
	}
	return matches
}
