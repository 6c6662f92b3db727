package matching

import (
	"context"
	"errors"
	"testing"

	"kitflow_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// fakeStore returns canned results per tier and records which tiers were
// consulted.
type fakeStore struct {
	byPlanID      []repository.Lead
	byNamePhone   []repository.Lead
	byPhone       []repository.Lead
	byTrackingRef []repository.Lead
	err           error

	consulted []string
	excludeID *uuid.UUID
}

func (f *fakeStore) FindByPlanID(_ context.Context, _ string, excludeID *uuid.UUID) ([]repository.Lead, error) {
	f.consulted = append(f.consulted, "plan_id")
	f.excludeID = excludeID
	return f.byPlanID, f.err
}

func (f *fakeStore) FindByNameAndPhone(_ context.Context, _, _, _ string, excludeID *uuid.UUID) ([]repository.Lead, error) {
	f.consulted = append(f.consulted, "name_phone")
	f.excludeID = excludeID
	return f.byNamePhone, f.err
}

func (f *fakeStore) FindByPhoneDigits(_ context.Context, _ string, excludeID *uuid.UUID) ([]repository.Lead, error) {
	f.consulted = append(f.consulted, "phone")
	f.excludeID = excludeID
	return f.byPhone, f.err
}

func (f *fakeStore) FindByTrackingRef(_ context.Context, _ string, excludeID *uuid.UUID) ([]repository.Lead, error) {
	f.consulted = append(f.consulted, "tracking_ref")
	f.excludeID = excludeID
	return f.byTrackingRef, f.err
}

func lead(id string) repository.Lead {
	return repository.Lead{ID: uuid.MustParse(id)}
}

const (
	leadA = "11111111-1111-1111-1111-111111111111"
	leadB = "22222222-2222-2222-2222-222222222222"
)

func TestMatchTierPrecedence(t *testing.T) {
	store := &fakeStore{
		byPlanID: []repository.Lead{lead(leadA)},
		byPhone:  []repository.Lead{lead(leadB)},
	}
	m := New(store)

	matches, err := m.Match(context.Background(), Candidate{
		PlanID:    "1A2B3C4D5E6",
		FirstName: "Ada",
		LastName:  "Byron",
		Phone:     "+13035551234",
	})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].Tier != TierPlanID {
		t.Fatalf("expected one plan_id match, got %+v", matches)
	}
	if matches[0].Lead.ID.String() != leadA {
		t.Errorf("plan id tier should win over phone tier")
	}
	// The winning tier short-circuits: weaker tiers are never consulted.
	if len(store.consulted) != 1 {
		t.Errorf("consulted tiers = %v, want only plan_id", store.consulted)
	}
}

func TestMatchFallsThroughEmptyTiers(t *testing.T) {
	store := &fakeStore{
		byPhone: []repository.Lead{lead(leadB)},
	}
	m := New(store)

	matches, err := m.Match(context.Background(), Candidate{
		PlanID:    "1A2B3C4D5E6",
		FirstName: "Ada",
		LastName:  "Byron",
		Phone:     "+13035551234",
	})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].Tier != TierPhone {
		t.Fatalf("expected a phone-tier match, got %+v", matches)
	}
}

func TestMatchSkipsBlankFields(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	// Name without a phone cannot use the name+phone tier; nothing else is
	// populated either, so no tier runs at all.
	matches, err := m.Match(context.Background(), Candidate{FirstName: "Ada", LastName: "Byron"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if matches != nil {
		t.Errorf("expected no matches, got %+v", matches)
	}
	if len(store.consulted) != 0 {
		t.Errorf("no tier should be consulted for blank fields, got %v", store.consulted)
	}
}

func TestMatchNoMatchIsNormal(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	matches, err := m.Match(context.Background(), Candidate{PlanID: "1A2B3C4D5E6", Phone: "+13035551234"})
	if err != nil {
		t.Fatalf("no match must not be an error, got %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected empty result, got %+v", matches)
	}
}

func TestMatchTrackingRefOnlyWhenEnabled(t *testing.T) {
	store := &fakeStore{byTrackingRef: []repository.Lead{lead(leadA)}}
	m := New(store)

	matches, err := m.Match(context.Background(), Candidate{TrackingRef: "TRK-9"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if matches != nil {
		t.Errorf("tracking tier must be off by default, got %+v", matches)
	}

	matches, err = m.Match(context.Background(), Candidate{TrackingRef: "TRK-9", IncludeTrackingRef: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].Tier != TierTrackingRef {
		t.Fatalf("expected a tracking_ref match, got %+v", matches)
	}
}

func TestMatchPropagatesExcludeID(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	exclude := uuid.MustParse(leadA)

	if _, err := m.Match(context.Background(), Candidate{Phone: "+13035551234", ExcludeLeadID: &exclude}); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if store.excludeID == nil || *store.excludeID != exclude {
		t.Errorf("exclude id not passed to store, got %v", store.excludeID)
	}
}

func TestMatchPropagatesStoreErrors(t *testing.T) {
	wantErr := errors.New("store down")
	store := &fakeStore{err: wantErr}
	m := New(store)

	if _, err := m.Match(context.Background(), Candidate{Phone: "+13035551234"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
