package service

import (
	"context"
	"errors"
	"testing"

	alertrepo "kitflow_backend/internal/alerts/repository"
	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/internal/leads/transport"
	"kitflow_backend/platform/apperr"
	"kitflow_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	leadID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	actorID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
)

type fakeRepo struct {
	leads     map[uuid.UUID]repository.Lead
	notes     []string
	createErr error
}

func newFakeRepo(seed ...repository.Lead) *fakeRepo {
	f := &fakeRepo{leads: make(map[uuid.UUID]repository.Lead)}
	for _, lead := range seed {
		f.leads[lead.ID] = lead
	}
	return f
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	if f.createErr != nil {
		return repository.Lead{}, f.createErr
	}
	for _, existing := range f.leads {
		if existing.PlanID == params.PlanID {
			return repository.Lead{}, repository.ErrDuplicatePlanID
		}
	}
	lead := repository.Lead{
		ID:        uuid.New(),
		PlanID:    params.PlanID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
		TestType:  params.TestType,
		Status:    params.Status,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeRepo) List(_ context.Context, _ repository.ListLeadsParams) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0, len(f.leads))
	for _, lead := range f.leads {
		out = append(out, lead)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.Status != nil {
		lead.Status = *params.Status
	}
	if params.Disposition != nil {
		lead.Disposition = params.Disposition
	}
	if params.TestType != nil {
		lead.TestType = *params.TestType
	}
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeRepo) IncrementContactAttempts(_ context.Context, id uuid.UUID) (int, error) {
	lead, ok := f.leads[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	lead.ContactAttempts++
	f.leads[id] = lead
	return lead.ContactAttempts, nil
}

func (f *fakeRepo) AppendAuditNote(_ context.Context, _ uuid.UUID, note string, _ *uuid.UUID) error {
	f.notes = append(f.notes, note)
	return nil
}

type fakeAlerts struct {
	newAlert *alertrepo.Alert
	list     []alertrepo.Alert
	marked   []uuid.UUID
}

func (f *fakeAlerts) CheckForDuplicate(_ context.Context, _ uuid.UUID) *alertrepo.Alert {
	return f.newAlert
}

func (f *fakeAlerts) ListForLead(_ context.Context, _ uuid.UUID) ([]alertrepo.Alert, error) {
	return f.list, nil
}

func (f *fakeAlerts) MarkAsDuplicate(_ context.Context, leadID, _ uuid.UUID) error {
	f.marked = append(f.marked, leadID)
	return nil
}

func newTestService(repo *fakeRepo, alerts *fakeAlerts) *Service {
	return New(repo, alerts, logger.New("test"))
}

func strPtr(s string) *string { return &s }

func TestCreateLead(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeAlerts{})

	lead, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		PlanID:    "1A2B3C4D5E6",
		FirstName: "Ada",
		LastName:  "Byron",
		Phone:     "(303) 555-1234",
		TestType:  "PGX",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if lead.Status != domain.StatusSubmitted {
		t.Errorf("status = %s, want %s", lead.Status, domain.StatusSubmitted)
	}
	if lead.Phone != "+13035551234" {
		t.Errorf("phone = %s, want E.164", lead.Phone)
	}
}

func TestCreateLeadAcceptsPartnerPlanID(t *testing.T) {
	// Partner-issued identifiers may lead with a letter or contain I, L, O;
	// only the identifiers we generate ourselves use the restricted alphabet.
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeAlerts{})

	for _, id := range []string{"AB2C3D4E5F6", "1A2B3C4D5EO"} {
		if _, err := svc.Create(context.Background(), transport.CreateLeadRequest{
			PlanID: id, FirstName: "Ada", LastName: "Byron", Phone: "3035551234", TestType: "PGX",
		}); err != nil {
			t.Errorf("Create with plan id %q: %v", id, err)
		}
	}
}

func TestCreateLeadDuplicatePlanID(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, PlanID: "1A2B3C4D5E6"})
	svc := newTestService(repo, &fakeAlerts{})

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		PlanID: "1A2B3C4D5E6", FirstName: "Ada", LastName: "Byron", Phone: "3035551234", TestType: "PGX",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}

func TestCreateLeadMalformedPlanID(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeAlerts{})

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		PlanID: "bogus", FirstName: "Ada", LastName: "Byron", Phone: "3035551234", TestType: "PGX",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestUpdateDispositionOverridesCallerStatus(t *testing.T) {
	// A disposition and a conflicting status arrive in the same request; the
	// disposition-derived status wins and the conflict is flagged.
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusAdvocateReview})
	svc := newTestService(repo, &fakeAlerts{})

	resp, err := svc.Update(context.Background(), leadID, transport.UpdateLeadRequest{
		Disposition: strPtr("CONNECTED_TO_COMPLIANCE"),
		Status:      strPtr(domain.StatusQualified),
	}, actorID, []string{domain.RoleAdvocate})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if resp.Lead.Status != domain.StatusSentToConsult {
		t.Errorf("status = %s, want %s (disposition wins)", resp.Lead.Status, domain.StatusSentToConsult)
	}
	if !resp.StatusConflict {
		t.Error("conflicting caller status must be flagged, not silently dropped")
	}
	if resp.RequestedStatus == nil || *resp.RequestedStatus != domain.StatusQualified {
		t.Error("flagged conflict should carry the requested status")
	}
}

func TestUpdateDispositionWithAgreeingStatus(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusAdvocateReview})
	svc := newTestService(repo, &fakeAlerts{})

	resp, err := svc.Update(context.Background(), leadID, transport.UpdateLeadRequest{
		Disposition: strPtr("DUPE"),
		Status:      strPtr(domain.StatusQualified),
	}, actorID, []string{domain.RoleAdvocate})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if resp.StatusConflict {
		t.Error("an agreeing caller status is not a conflict")
	}
	if resp.Lead.Status != domain.StatusQualified {
		t.Errorf("status = %s, want %s", resp.Lead.Status, domain.StatusQualified)
	}
}

func TestUpdateUnknownDisposition(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusAdvocateReview})
	svc := newTestService(repo, &fakeAlerts{})

	_, err := svc.Update(context.Background(), leadID, transport.UpdateLeadRequest{
		Disposition: strPtr("SOMETHING_ELSE"),
	}, actorID, []string{domain.RoleAdvocate})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestUpdateRejectsDisallowedTransition(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusSentToConsult})
	svc := newTestService(repo, &fakeAlerts{})

	_, err := svc.Update(context.Background(), leadID, transport.UpdateLeadRequest{
		Status: strPtr(domain.StatusApproved),
	}, actorID, []string{domain.RoleAdvocate})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected a validation error for a disallowed transition, got %v", err)
	}
	// Rejected, never coerced: the stored status is untouched.
	if repo.leads[leadID].Status != domain.StatusSentToConsult {
		t.Error("a rejected transition must not change the stored status")
	}
}

func TestUpdateRecordsStatusAuditNote(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusSubmitted})
	svc := newTestService(repo, &fakeAlerts{})

	_, err := svc.Update(context.Background(), leadID, transport.UpdateLeadRequest{
		Status: strPtr(domain.StatusAdvocateReview),
	}, actorID, []string{domain.RoleAdvocate})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(repo.notes) != 1 {
		t.Fatalf("audit notes = %v, want one status note", repo.notes)
	}
}

func TestGetDetailCarriesNewAlert(t *testing.T) {
	related := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	alert := alertrepo.Alert{ID: uuid.New(), Type: alertrepo.TypeDuplicate, LeadID: leadID, RelatedLeadID: &related}
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusSubmitted})
	svc := newTestService(repo, &fakeAlerts{newAlert: &alert, list: []alertrepo.Alert{alert}})

	detail, err := svc.GetDetail(context.Background(), leadID)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if detail.NewAlert == nil || detail.NewAlert.ID != alert.ID {
		t.Error("an alert created during the read should ride along in the response")
	}
	if len(detail.Alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(detail.Alerts))
	}
}

func TestRecordContactAttempt(t *testing.T) {
	repo := newFakeRepo(repository.Lead{ID: leadID, Status: domain.StatusAdvocateReview, ContactAttempts: 2})
	svc := newTestService(repo, &fakeAlerts{})

	resp, err := svc.RecordContactAttempt(context.Background(), leadID)
	if err != nil {
		t.Fatalf("RecordContactAttempt: %v", err)
	}
	if resp.ContactAttempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.ContactAttempts)
	}
}
