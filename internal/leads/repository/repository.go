// Package repository provides pgx-backed persistence for leads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no lead matches the given id.
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicatePlanID is returned when a direct create collides with an
	// existing plan identifier. Reconciliation never sees this: it matches
	// and updates instead.
	ErrDuplicatePlanID = errors.New("plan identifier already exists")
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock implements
// it too, which keeps repository tests off a live database.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists leads. Every call wraps the context with the configured
// storage timeout; a deadline hit surfaces as context.DeadlineExceeded for the
// service layer to classify as transient, never as data corruption.
type Repository struct {
	db      DB
	timeout time.Duration
}

// New creates a lead repository. A zero timeout disables per-call deadlines.
func New(db DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Lead is the stored representation of a patient lead.
type Lead struct {
	ID                 uuid.UUID
	PlanID             string
	FirstName          string
	LastName           string
	Phone              string
	PhoneDigits        string
	DateOfBirth        *time.Time
	TrackingRef        *string
	TestType           string
	Status             string
	Disposition        *string
	AdvocateID         *uuid.UUID
	CollectionsAgentID *uuid.UUID
	ReviewedAt         *time.Time
	ContactAttempts    int
	IsDuplicate        bool
	HasActiveAlerts    bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const leadColumns = `id, plan_id, first_name, last_name, phone, phone_digits, date_of_birth, tracking_ref,
	test_type, status, disposition, advocate_id, collections_agent_id, reviewed_at,
	contact_attempts, is_duplicate, has_active_alerts, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.PlanID, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.PhoneDigits,
		&lead.DateOfBirth, &lead.TrackingRef, &lead.TestType, &lead.Status, &lead.Disposition,
		&lead.AdvocateID, &lead.CollectionsAgentID, &lead.ReviewedAt,
		&lead.ContactAttempts, &lead.IsDuplicate, &lead.HasActiveAlerts,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

// CreateLeadParams holds the fields for direct lead creation.
type CreateLeadParams struct {
	PlanID      string
	FirstName   string
	LastName    string
	Phone       string
	PhoneDigits string
	DateOfBirth *time.Time
	TrackingRef *string
	TestType    string
	Status      string
}

// Create inserts a new lead. A plan identifier collision returns
// ErrDuplicatePlanID.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	lead, err := scanLead(r.db.QueryRow(ctx, `
		INSERT INTO leads (plan_id, first_name, last_name, phone, phone_digits, date_of_birth, tracking_ref, test_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns,
		params.PlanID, params.FirstName, params.LastName, params.Phone, params.PhoneDigits,
		params.DateOfBirth, params.TrackingRef, params.TestType, params.Status,
	))
	if isUniqueViolation(err, "leads_plan_id_key") {
		return Lead{}, ErrDuplicatePlanID
	}
	if err != nil {
		return Lead{}, err
	}

	return lead, nil
}

// GetByID retrieves a lead by its id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	lead, err := scanLead(r.db.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListLeadsParams filters the lead listing.
type ListLeadsParams struct {
	Status     *string
	AdvocateID *uuid.UUID
	Unassigned bool
	Limit      int
	Offset     int
}

// List returns leads matching the filter, newest first.
func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	where := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if params.Status != nil {
		args = append(args, *params.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.AdvocateID != nil {
		args = append(args, *params.AdvocateID)
		where = append(where, fmt.Sprintf("advocate_id = $%d", len(args)))
	}
	if params.Unassigned {
		where = append(where, "advocate_id IS NULL")
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

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

// UpdateLeadParams holds the mutable fields a reviewer update may touch.
// Identity fields (plan id, name, phone, date of birth) are immutable here;
// only reconciliation updates them, via UpdateFromReconciliation.
type UpdateLeadParams struct {
	Status      *string
	Disposition *string
	TestType    *string
}

// Update applies a partial update to a lead's mutable fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	set := []string{"updated_at = now()"}
	args := []any{id}

	if params.Status != nil {
		args = append(args, *params.Status)
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Disposition != nil {
		args = append(args, *params.Disposition)
		set = append(set, fmt.Sprintf("disposition = $%d", len(args)))
	}
	if params.TestType != nil {
		args = append(args, *params.TestType)
		set = append(set, fmt.Sprintf("test_type = $%d", len(args)))
	}

	lead, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE leads SET `+strings.Join(set, ", ")+`
		WHERE id = $1
		RETURNING `+leadColumns,
		args...,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ReconcileUpdateParams holds the fields a reconciliation match may refresh.
// The plan identifier is deliberately absent: it is preserved on update.
type ReconcileUpdateParams struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	PhoneDigits *string
	DateOfBirth *time.Time
	TrackingRef *string
	TestType    *string
	Status      *string
}

// UpdateFromReconciliation refreshes mutable fields on a matched lead while
// preserving its plan identifier and history.
func (r *Repository) UpdateFromReconciliation(ctx context.Context, id uuid.UUID, params ReconcileUpdateParams) (Lead, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		add("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		add("last_name", *params.LastName)
	}
	if params.Phone != nil {
		add("phone", *params.Phone)
	}
	if params.PhoneDigits != nil {
		add("phone_digits", *params.PhoneDigits)
	}
	if params.DateOfBirth != nil {
		add("date_of_birth", *params.DateOfBirth)
	}
	if params.TrackingRef != nil {
		add("tracking_ref", *params.TrackingRef)
	}
	if params.TestType != nil {
		add("test_type", *params.TestType)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}

	lead, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE leads SET `+strings.Join(set, ", ")+`
		WHERE id = $1
		RETURNING `+leadColumns,
		args...,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// IncrementContactAttempts bumps the contact-attempt counter.
func (r *Repository) IncrementContactAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var attempts int
	err := r.db.QueryRow(ctx, `
		UPDATE leads SET contact_attempts = contact_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING contact_attempts
	`, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return attempts, err
}

// SetDuplicateFlag sets is_duplicate on a lead.
func (r *Repository) SetDuplicateFlag(ctx context.Context, id uuid.UUID, isDuplicate bool) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET is_duplicate = $2, updated_at = now() WHERE id = $1
	`, id, isDuplicate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActiveAlerts sets has_active_alerts on a lead.
func (r *Repository) SetActiveAlerts(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET has_active_alerts = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AuditNote is an append-only note on a lead's history.
type AuditNote struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Note      string
	ActorID   *uuid.UUID
	CreatedAt time.Time
}

// AppendAuditNote records an audit note for a lead. A nil actor marks a
// system-generated note (e.g. reconciliation).
func (r *Repository) AppendAuditNote(ctx context.Context, leadID uuid.UUID, note string, actorID *uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO lead_audit_notes (lead_id, note, actor_id) VALUES ($1, $2, $3)
	`, leadID, note, actorID)
	return err
}

// ListAuditNotes returns a lead's audit notes, oldest first.
func (r *Repository) ListAuditNotes(ctx context.Context, leadID uuid.UUID) ([]AuditNote, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, note, actor_id, created_at
		FROM lead_audit_notes WHERE lead_id = $1 ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]AuditNote, 0)
	for rows.Next() {
		var n AuditNote
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Note, &n.ActorID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}
