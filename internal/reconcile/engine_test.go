package reconcile

import (
	"context"
	"strings"
	"testing"

	"kitflow_backend/internal/events"
	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/matching"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/logger"
	"kitflow_backend/platform/phone"

	"github.com/google/uuid"
)

const testBatchID = "3d1f8f3e-9a1a-4a8e-bb1e-0d9f6f0a1c22"

// fakeLeadStore keeps leads in memory and records reconciliation writes.
type fakeLeadStore struct {
	leads map[uuid.UUID]repository.Lead
	notes map[uuid.UUID][]string
}

func newFakeLeadStore(seed ...repository.Lead) *fakeLeadStore {
	f := &fakeLeadStore{
		leads: make(map[uuid.UUID]repository.Lead),
		notes: make(map[uuid.UUID][]string),
	}
	for _, lead := range seed {
		f.leads[lead.ID] = lead
	}
	return f
}

func (f *fakeLeadStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	for _, existing := range f.leads {
		if existing.PlanID == params.PlanID {
			return repository.Lead{}, repository.ErrDuplicatePlanID
		}
	}
	lead := repository.Lead{
		ID:          uuid.New(),
		PlanID:      params.PlanID,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		Phone:       params.Phone,
		PhoneDigits: params.PhoneDigits,
		DateOfBirth: params.DateOfBirth,
		TrackingRef: params.TrackingRef,
		TestType:    params.TestType,
		Status:      params.Status,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeLeadStore) UpdateFromReconciliation(_ context.Context, id uuid.UUID, params repository.ReconcileUpdateParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.FirstName != nil {
		lead.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		lead.LastName = *params.LastName
	}
	if params.Phone != nil {
		lead.Phone = *params.Phone
	}
	if params.PhoneDigits != nil {
		lead.PhoneDigits = *params.PhoneDigits
	}
	if params.DateOfBirth != nil {
		lead.DateOfBirth = params.DateOfBirth
	}
	if params.TrackingRef != nil {
		lead.TrackingRef = params.TrackingRef
	}
	if params.TestType != nil {
		lead.TestType = *params.TestType
	}
	if params.Status != nil {
		lead.Status = *params.Status
	}
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeLeadStore) AppendAuditNote(_ context.Context, leadID uuid.UUID, note string, _ *uuid.UUID) error {
	f.notes[leadID] = append(f.notes[leadID], note)
	return nil
}

func (f *fakeLeadStore) byPlanID(planID string) (repository.Lead, bool) {
	for _, lead := range f.leads {
		if lead.PlanID == planID {
			return lead, true
		}
	}
	return repository.Lead{}, false
}

// fakeMatcher resolves candidates against the fake store with the real
// precedence: plan id, then phone, then tracking ref.
type fakeMatcher struct {
	store *fakeLeadStore
}

func (m *fakeMatcher) Match(_ context.Context, c matching.Candidate) ([]matching.Match, error) {
	if c.PlanID != "" {
		if lead, ok := m.store.byPlanID(c.PlanID); ok {
			return []matching.Match{{Lead: lead, Tier: matching.TierPlanID}}, nil
		}
	}
	if key := phone.MatchKey(c.Phone); key != "" {
		for _, lead := range m.store.leads {
			if lead.PhoneDigits == key {
				return []matching.Match{{Lead: lead, Tier: matching.TierPhone}}, nil
			}
		}
	}
	if c.IncludeTrackingRef && c.TrackingRef != "" {
		for _, lead := range m.store.leads {
			if lead.TrackingRef != nil && *lead.TrackingRef == c.TrackingRef {
				return []matching.Match{{Lead: lead, Tier: matching.TierTrackingRef}}, nil
			}
		}
	}
	return nil, nil
}

func newTestEngine(store *fakeLeadStore) *Engine {
	log := logger.New("test")
	return NewEngine(store, &fakeMatcher{store: store}, events.NewInMemoryBus(log), log, 25)
}

func TestRunUpdatesMatchedLead(t *testing.T) {
	existing := repository.Lead{
		ID:        uuid.New(),
		PlanID:    "1A2B3C4D5E6",
		FirstName: "Ada",
		LastName:  "Byron",
		Status:    domain.StatusSubmitted,
	}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"Plan ID": "1A2B3C4D5E6", "First Name": "Ada", "Last Name": "Lovelace", "Phone": "(303) 555-1234"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Updated != 1 || report.Created != 0 || report.Errored != 0 {
		t.Fatalf("report = %+v, want one update", report)
	}

	updated := store.leads[existing.ID]
	if updated.PlanID != "1A2B3C4D5E6" {
		t.Error("plan identifier must be preserved on update")
	}
	if updated.LastName != "Lovelace" {
		t.Errorf("last name = %s, want Lovelace", updated.LastName)
	}
	if updated.PhoneDigits != "3035551234" {
		t.Errorf("phone digits = %s, want 3035551234", updated.PhoneDigits)
	}
}

func TestRunCreatesLeadWithSyntheticPlanID(t *testing.T) {
	store := newFakeLeadStore()
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"first_name": "Grace", "last_name": "Hopper", "phone": "212-555-0000", "test_type": "PGX"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Created != 1 || report.Updated != 0 || report.Errored != 0 {
		t.Fatalf("report = %+v, want one create", report)
	}
	if len(store.leads) != 1 {
		t.Fatalf("lead count = %d, want 1", len(store.leads))
	}
	for _, lead := range store.leads {
		if !domain.IsValidPlanID(lead.PlanID) {
			t.Errorf("synthetic plan id %q is malformed", lead.PlanID)
		}
		if lead.Status != domain.StatusSubmitted {
			t.Errorf("status = %s, want %s", lead.Status, domain.StatusSubmitted)
		}
	}
}

func TestRunIsolatesRowErrors(t *testing.T) {
	store := newFakeLeadStore()
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"first_name": "Grace", "last_name": "Hopper", "phone": "212-555-0000"},
		{"notes": "no identity here"},
		{"first_name": "Katherine", "last_name": "Johnson", "phone": "757-555-1111"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Processed != 3 {
		t.Errorf("processed = %d, want 3", report.Processed)
	}
	if report.Created != 2 {
		t.Errorf("created = %d, want 2; a bad row must not abort the batch", report.Created)
	}
	if report.Errored != 1 || len(report.RowErrors) != 1 {
		t.Fatalf("expected exactly one row error, got %+v", report.RowErrors)
	}
	if report.RowErrors[0].Row != 2 {
		t.Errorf("row error points at row %d, want 2", report.RowErrors[0].Row)
	}
}

func TestRunCapsReportedRowErrors(t *testing.T) {
	store := newFakeLeadStore()
	log := logger.New("test")
	engine := NewEngine(store, &fakeMatcher{store: store}, events.NewInMemoryBus(log), log, 2)

	records := make([]Record, 5)
	for i := range records {
		records[i] = Record{"notes": "no identity"}
	}

	report, err := engine.Run(context.Background(), testBatchID, records, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errored != 5 {
		t.Errorf("errored = %d, want 5", report.Errored)
	}
	if len(report.RowErrors) != 2 {
		t.Errorf("reported row errors = %d, want cap of 2", len(report.RowErrors))
	}
}

func TestRunDropsUnparseableDates(t *testing.T) {
	existing := repository.Lead{ID: uuid.New(), PlanID: "1A2B3C4D5E6", Status: domain.StatusSubmitted}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"plan_id": "1A2B3C4D5E6", "dob": "not-a-date"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errored != 0 || report.Updated != 1 {
		t.Fatalf("an unparseable date must not fail the row, report = %+v", report)
	}
	if store.leads[existing.ID].DateOfBirth != nil {
		t.Error("unparseable date should be discarded, not stored")
	}
}

func TestRunKitCompletionJump(t *testing.T) {
	existing := repository.Lead{ID: uuid.New(), PlanID: "1A2B3C4D5E6", Status: domain.StatusShipped}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"plan_id": "1A2B3C4D5E6", "completion_date": "01/15/2026"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Completed != 1 {
		t.Errorf("completed = %d, want 1", report.Completed)
	}
	if got := store.leads[existing.ID].Status; got != domain.StatusKitCompleted {
		t.Errorf("status = %s, want %s", got, domain.StatusKitCompleted)
	}

	notes := store.notes[existing.ID]
	if len(notes) != 1 {
		t.Fatalf("expected one audit note, got %v", notes)
	}
	// The skipped intermediates are recorded, not silently jumped.
	if !strings.Contains(notes[0], domain.StatusDelivered) || !strings.Contains(notes[0], domain.StatusKitReturning) {
		t.Errorf("audit note %q should record the implied progression", notes[0])
	}
}

func TestRunSecondCompletionRowIsNoOp(t *testing.T) {
	existing := repository.Lead{ID: uuid.New(), PlanID: "1A2B3C4D5E6", Status: domain.StatusKitCompleted}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"plan_id": "1A2B3C4D5E6", "kit_completed": "yes"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Errored != 0 {
		t.Fatalf("a repeat completion row is a no-op, not an error: %+v", report.RowErrors)
	}
	if report.Completed != 0 {
		t.Errorf("completed = %d, want 0 for a no-op", report.Completed)
	}
	if got := store.leads[existing.ID].Status; got != domain.StatusKitCompleted {
		t.Errorf("status = %s, must stay %s", got, domain.StatusKitCompleted)
	}
}

func TestRunMalformedPlanIDIsRowError(t *testing.T) {
	store := newFakeLeadStore()
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"plan_id": "not-a-plan-id", "first_name": "Grace", "last_name": "Hopper"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errored != 1 {
		t.Fatalf("expected a row error for a malformed plan id, got %+v", report)
	}
	if len(store.leads) != 0 {
		t.Error("no lead should be created from a malformed plan id")
	}
}

func TestRunMatchesPartnerPlanID(t *testing.T) {
	// Identifiers issued outside our generator may lead with a letter; they
	// still match on the first tier rather than erroring as malformed.
	existing := repository.Lead{
		ID:     uuid.New(),
		PlanID: "AB2C3D4E5F6",
		Status: domain.StatusSubmitted,
	}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"plan_id": "AB2C3D4E5F6", "first_name": "Grace", "last_name": "Hopper"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errored != 0 {
		t.Fatalf("a partner-issued plan id is not malformed, report = %+v", report.RowErrors)
	}
	if report.Updated != 1 || report.Created != 0 {
		t.Fatalf("report = %+v, want one update via plan id match", report)
	}
	if got := store.leads[existing.ID].FirstName; got != "Grace" {
		t.Errorf("first name = %s, want Grace", got)
	}
}

func TestRunMatchesByTrackingRef(t *testing.T) {
	ref := "TRK-42"
	existing := repository.Lead{ID: uuid.New(), PlanID: "1A2B3C4D5E6", TrackingRef: &ref, Status: domain.StatusShipped}
	store := newFakeLeadStore(existing)
	engine := newTestEngine(store)

	report, err := engine.Run(context.Background(), testBatchID, []Record{
		{"tracking_number": "TRK-42", "test_type": "COLOGUARD"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Updated != 1 || report.Created != 0 {
		t.Fatalf("tracking ref should match the existing lead, report = %+v", report)
	}
	if got := store.leads[existing.ID].TestType; got != "COLOGUARD" {
		t.Errorf("test type = %s, want COLOGUARD", got)
	}
}
