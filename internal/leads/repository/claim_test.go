package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"kitflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var leadCols = []string{
	"id", "plan_id", "first_name", "last_name", "phone", "phone_digits",
	"date_of_birth", "tracking_ref", "test_type", "status", "disposition",
	"advocate_id", "collections_agent_id", "reviewed_at",
	"contact_attempts", "is_duplicate", "has_active_alerts", "created_at", "updated_at",
}

func claimedLeadRows(leadID, reviewerID uuid.UUID) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(leadCols).AddRow(
		leadID, "1A2B3C4D5E6", "Ada", "Byron", "+13035551234", "3035551234",
		nil, nil, "PGX", domain.StatusAdvocateReview, nil,
		&reviewerID, nil, &now,
		0, false, false, now, now,
	)
}

func TestClaimAdvocateWinsOnConditionalUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	leadID := uuid.New()
	reviewerID := uuid.New()

	mock.ExpectQuery(`UPDATE leads`).
		WithArgs(leadID, reviewerID, domain.StatusAdvocateReview, domain.StatusSubmitted, domain.StatusAdvocateReview).
		WillReturnRows(claimedLeadRows(leadID, reviewerID))

	repo := New(mock, time.Second)
	lead, claimed, err := repo.ClaimAdvocate(context.Background(), leadID, reviewerID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, domain.StatusAdvocateReview, lead.Status)
	require.NotNil(t, lead.AdvocateID)
	require.Equal(t, reviewerID, *lead.AdvocateID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimAdvocateLostRaceIsNotAnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	leadID := uuid.New()
	reviewerID := uuid.New()

	// The conditional update matches no row: the precondition no longer
	// holds. That is a result to branch on, never an error.
	mock.ExpectQuery(`UPDATE leads`).
		WithArgs(leadID, reviewerID, domain.StatusAdvocateReview, domain.StatusSubmitted, domain.StatusAdvocateReview).
		WillReturnRows(pgxmock.NewRows(leadCols))

	repo := New(mock, time.Second)
	_, claimed, err := repo.ClaimAdvocate(context.Background(), leadID, reviewerID)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimCollectionsConditionalUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	leadID := uuid.New()
	agentID := uuid.New()

	mock.ExpectQuery(`UPDATE leads`).
		WithArgs(leadID, agentID, domain.StatusCollections).
		WillReturnRows(pgxmock.NewRows(leadCols))

	repo := New(mock, time.Second)
	_, claimed, err := repo.ClaimCollections(context.Background(), leadID, agentID)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsPlanIDCollision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "leads_plan_id_key"})

	repo := New(mock, time.Second)
	_, err = repo.Create(context.Background(), CreateLeadParams{
		PlanID:    "1A2B3C4D5E6",
		FirstName: "Ada",
		LastName:  "Byron",
		Status:    domain.StatusSubmitted,
	})
	require.True(t, errors.Is(err, ErrDuplicatePlanID))

	require.NoError(t, mock.ExpectationsWereMet())
}
