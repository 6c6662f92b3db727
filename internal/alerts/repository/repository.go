// Package repository provides pgx-backed persistence for alerts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no alert matches the given id.
var ErrNotFound = errors.New("alert not found")

// Alert types and severities.
const (
	TypeDuplicate = "duplicate"

	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists alerts.
type Repository struct {
	db      DB
	timeout time.Duration
}

// New creates an alert repository. A zero timeout disables per-call deadlines.
func New(db DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Alert is a persisted integrity concern tied to one or two leads.
type Alert struct {
	ID             uuid.UUID
	Type           string
	Severity       string
	LeadID         uuid.UUID
	RelatedLeadID  *uuid.UUID
	Acknowledged   bool
	AcknowledgedBy *uuid.UUID
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
}

const alertColumns = `id, type, severity, lead_id, related_lead_id, acknowledged, acknowledged_by, acknowledged_at, created_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID, &a.Type, &a.Severity, &a.LeadID, &a.RelatedLeadID,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
	)
	return a, err
}

// CreateAlertParams holds the fields for alert creation.
type CreateAlertParams struct {
	Type          string
	Severity      string
	LeadID        uuid.UUID
	RelatedLeadID *uuid.UUID
}

// Create inserts an unacknowledged alert. Deduplication is enforced by the
// storage layer: a partial unique index over (lead_id, related_lead_id, type)
// on unacknowledged rows makes the check-then-create race harmless. When the
// pair is already alerted, created is false and no error is returned.
func (r *Repository) Create(ctx context.Context, params CreateAlertParams) (Alert, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	alert, err := scanAlert(r.db.QueryRow(ctx, `
		INSERT INTO alerts (type, severity, lead_id, related_lead_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+alertColumns,
		params.Type, params.Severity, params.LeadID, params.RelatedLeadID,
	))
	if isUniqueViolation(err) {
		return Alert{}, false, nil
	}
	if err != nil {
		return Alert{}, false, err
	}

	return alert, true, nil
}

// GetByID retrieves an alert by its id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Alert, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	alert, err := scanAlert(r.db.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	return alert, err
}

// ListByLead returns all alerts referencing the lead, newest first.
func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Alert, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE lead_id = $1 OR related_lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// Acknowledge marks an alert acknowledged, recording actor and time. The
// second return is false when the alert was already acknowledged; the current
// row is returned either way.
func (r *Repository) Acknowledge(ctx context.Context, id, actorID uuid.UUID) (Alert, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	alert, err := scanAlert(r.db.QueryRow(ctx, `
		UPDATE alerts
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = now()
		WHERE id = $1 AND acknowledged = false
		RETURNING `+alertColumns,
		id, actorID,
	))
	if err == nil {
		return alert, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, false, err
	}

	alert, err = r.GetByID(ctx, id)
	if err != nil {
		return Alert{}, false, err
	}
	return alert, false, nil
}

// CountUnacknowledged returns how many unacknowledged alerts reference the lead.
func (r *Repository) CountUnacknowledged(ctx context.Context, leadID uuid.UUID) (int, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM alerts
		WHERE (lead_id = $1 OR related_lead_id = $1) AND acknowledged = false
	`, leadID).Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
