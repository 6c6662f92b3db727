// Package reconcile merges externally supplied batch records into the lead
// store using the identity matcher. Rows carry loosely structured partner
// data; the engine normalizes defensively, updates matched leads in place,
// and creates new leads with synthetic plan identifiers when nothing matches.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitflow_backend/internal/events"
	"kitflow_backend/internal/leads/domain"
	"kitflow_backend/internal/leads/matching"
	"kitflow_backend/internal/leads/repository"
	"kitflow_backend/platform/logger"
	"kitflow_backend/platform/phone"

	"github.com/google/uuid"
)

const progressEvery = 50

// LeadStore is the persistence surface the engine needs.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	UpdateFromReconciliation(ctx context.Context, id uuid.UUID, params repository.ReconcileUpdateParams) (repository.Lead, error)
	AppendAuditNote(ctx context.Context, leadID uuid.UUID, note string, actorID *uuid.UUID) error
}

// Matcher resolves a row's identity against the lead store.
type Matcher interface {
	Match(ctx context.Context, candidate matching.Candidate) ([]matching.Match, error)
}

// ProgressSink receives periodic batch progress. The engine tolerates sink
// failures; progress is advisory.
type ProgressSink interface {
	Write(ctx context.Context, p Progress) error
}

// RowError records a per-row failure with its 1-based row number.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report summarizes a finished batch. RowErrors carries at most the
// configured cap; Errored is the true count.
type Report struct {
	BatchID   string     `json:"batchId"`
	Processed int        `json:"processed"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Completed int        `json:"completed"`
	Errored   int        `json:"errored"`
	RowErrors []RowError `json:"rowErrors,omitempty"`
}

// Progress is a point-in-time snapshot of a running batch.
type Progress struct {
	BatchID   string     `json:"batchId"`
	Status    string     `json:"status"` // queued, running, completed, failed
	TotalRows int        `json:"totalRows"`
	Processed int        `json:"processed"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Completed int        `json:"completed"`
	Errored   int        `json:"errored"`
	RowErrors []RowError `json:"rowErrors,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Engine runs reconciliation batches.
type Engine struct {
	store        LeadStore
	matcher      Matcher
	bus          events.Bus
	log          *logger.Logger
	maxRowErrors int
}

// NewEngine creates a reconciliation engine. maxRowErrors caps how many row
// errors a report carries; the error count itself is never capped.
func NewEngine(store LeadStore, matcher Matcher, bus events.Bus, log *logger.Logger, maxRowErrors int) *Engine {
	return &Engine{store: store, matcher: matcher, bus: bus, log: log, maxRowErrors: maxRowErrors}
}

// Run processes every record in the batch. One bad row never aborts the run;
// only context cancellation does. Progress is written to the sink every 50
// rows when a sink is provided.
func (e *Engine) Run(ctx context.Context, batchID string, records []Record, sink ProgressSink) (Report, error) {
	report := Report{BatchID: batchID}

	for i, rec := range records {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		row := i + 1
		outcome, err := e.processRow(ctx, rec)
		report.Processed++

		switch {
		case err != nil:
			report.Errored++
			if len(report.RowErrors) < e.maxRowErrors {
				report.RowErrors = append(report.RowErrors, RowError{Row: row, Message: err.Error()})
			}
		case outcome.created:
			report.Created++
		default:
			report.Updated++
		}
		if outcome.completed {
			report.Completed++
		}

		if sink != nil && row%progressEvery == 0 {
			e.writeProgress(ctx, sink, report, len(records), "running")
		}
	}

	if sink != nil {
		e.writeProgress(ctx, sink, report, len(records), "completed")
	} else {
		e.log.ReconcileProgress(batchID, report.Processed, report.Created, report.Updated, report.Errored)
	}

	if id, err := uuid.Parse(batchID); err == nil {
		e.bus.Publish(ctx, events.BatchCompleted{
			BaseEvent: events.NewBaseEvent(),
			BatchID:   id,
			Processed: report.Processed,
			Created:   report.Created,
			Updated:   report.Updated,
			Errored:   report.Errored,
		})
	}

	return report, nil
}

type rowOutcome struct {
	created   bool
	completed bool
}

// rowFields is one record after alias resolution and defensive normalization.
type rowFields struct {
	planID      string
	firstName   string
	lastName    string
	phoneE164   string
	phoneDigits string
	dateOfBirth *time.Time
	trackingRef string
	testType    string
	completion  bool
}

func (e *Engine) processRow(ctx context.Context, rec Record) (rowOutcome, error) {
	fields, err := e.normalizeRow(rec)
	if err != nil {
		return rowOutcome{}, err
	}

	matches, err := e.matcher.Match(ctx, matching.Candidate{
		PlanID:             fields.planID,
		FirstName:          fields.firstName,
		LastName:           fields.lastName,
		Phone:              fields.phoneE164,
		TrackingRef:        fields.trackingRef,
		IncludeTrackingRef: true,
	})
	if err != nil {
		return rowOutcome{}, fmt.Errorf("identity match failed: %w", err)
	}

	if len(matches) > 0 {
		return e.updateMatched(ctx, matches[0].Lead, fields)
	}
	return e.createFromRow(ctx, fields)
}

func (e *Engine) normalizeRow(rec Record) (rowFields, error) {
	fields := rowFields{
		firstName:   resolve(rec, FieldFirstName),
		lastName:    resolve(rec, FieldLastName),
		trackingRef: resolve(rec, FieldTrackingRef),
		testType:    resolve(rec, FieldTestType),
		completion:  isCompletionMarker(resolve(rec, FieldKitCompleted)),
	}

	if raw := resolve(rec, FieldPlanID); raw != "" {
		planID := domain.NormalizePlanID(raw)
		if !domain.IsValidPlanID(planID) {
			return rowFields{}, fmt.Errorf("malformed plan identifier %q", raw)
		}
		fields.planID = planID
	}

	if raw := resolve(rec, FieldPhone); raw != "" {
		fields.phoneE164 = phone.NormalizeE164(raw)
		fields.phoneDigits = phone.MatchKey(fields.phoneE164)
	}

	if raw := resolve(rec, FieldDateOfBirth); raw != "" {
		if dob, ok := parseDate(raw); ok {
			fields.dateOfBirth = &dob
		} else {
			// Defensive: a roster date we cannot read is dropped, never fatal.
			e.log.Debug("discarding unparseable date", "value", raw)
		}
	}

	hasName := fields.firstName != "" && fields.lastName != ""
	if fields.planID == "" && fields.phoneDigits == "" && fields.trackingRef == "" && !hasName {
		return rowFields{}, errors.New("no usable identity fields (plan id, phone, tracking ref, or name pair)")
	}

	return fields, nil
}

func (e *Engine) updateMatched(ctx context.Context, lead repository.Lead, fields rowFields) (rowOutcome, error) {
	params := repository.ReconcileUpdateParams{
		DateOfBirth: fields.dateOfBirth,
	}
	if fields.firstName != "" {
		params.FirstName = &fields.firstName
	}
	if fields.lastName != "" {
		params.LastName = &fields.lastName
	}
	if fields.phoneE164 != "" {
		params.Phone = &fields.phoneE164
		params.PhoneDigits = &fields.phoneDigits
	}
	if fields.trackingRef != "" {
		params.TrackingRef = &fields.trackingRef
	}
	if fields.testType != "" {
		params.TestType = &fields.testType
	}

	outcome := rowOutcome{}
	var completionNote string
	if fields.completion {
		implied, ok := domain.CompletionJump(lead.Status)
		switch {
		case ok:
			status := domain.StatusKitCompleted
			params.Status = &status
			outcome.completed = true
			completionNote = "kit completion reconciled"
			if len(implied) > 0 {
				completionNote += "; implied progression: " + strings.Join(implied, " -> ")
			}
		case lead.Status == domain.StatusKitCompleted:
			e.log.Info("completion record for already completed lead, no-op", "lead_id", lead.ID)
		default:
			e.log.Info("completion record for returned lead, ignored", "lead_id", lead.ID)
		}
	}

	if _, err := e.store.UpdateFromReconciliation(ctx, lead.ID, params); err != nil {
		return rowOutcome{}, fmt.Errorf("update failed: %w", err)
	}

	if completionNote != "" {
		if err := e.store.AppendAuditNote(ctx, lead.ID, completionNote, nil); err != nil {
			e.log.Warn("failed to record completion audit note", "lead_id", lead.ID, "error", err)
		}
	}

	return outcome, nil
}

func (e *Engine) createFromRow(ctx context.Context, fields rowFields) (rowOutcome, error) {
	if fields.firstName == "" || fields.lastName == "" {
		return rowOutcome{}, errors.New("cannot create a lead without a name pair")
	}

	planID := fields.planID
	if planID == "" {
		generated, err := domain.GeneratePlanID()
		if err != nil {
			return rowOutcome{}, fmt.Errorf("plan id generation failed: %w", err)
		}
		planID = generated
	}

	params := repository.CreateLeadParams{
		PlanID:      planID,
		FirstName:   fields.firstName,
		LastName:    fields.lastName,
		Phone:       fields.phoneE164,
		PhoneDigits: fields.phoneDigits,
		DateOfBirth: fields.dateOfBirth,
		TestType:    fields.testType,
		Status:      domain.StatusSubmitted,
	}
	if fields.trackingRef != "" {
		params.TrackingRef = &fields.trackingRef
	}

	outcome := rowOutcome{created: true}
	if fields.completion {
		params.Status = domain.StatusKitCompleted
		outcome.completed = true
	}

	lead, err := e.store.Create(ctx, params)
	if errors.Is(err, repository.ErrDuplicatePlanID) {
		// A concurrent writer landed the same plan id between our match and
		// create. Surface it as a row error; the next batch will match it.
		return rowOutcome{}, fmt.Errorf("plan identifier %s already exists", planID)
	}
	if err != nil {
		return rowOutcome{}, fmt.Errorf("create failed: %w", err)
	}

	if outcome.completed {
		if err := e.store.AppendAuditNote(ctx, lead.ID, "created from reconciliation with completion evidence", nil); err != nil {
			e.log.Warn("failed to record completion audit note", "lead_id", lead.ID, "error", err)
		}
	}

	return outcome, nil
}

func (e *Engine) writeProgress(ctx context.Context, sink ProgressSink, report Report, totalRows int, status string) {
	p := Progress{
		BatchID:   report.BatchID,
		Status:    status,
		TotalRows: totalRows,
		Processed: report.Processed,
		Created:   report.Created,
		Updated:   report.Updated,
		Completed: report.Completed,
		Errored:   report.Errored,
		RowErrors: report.RowErrors,
		UpdatedAt: time.Now().UTC(),
	}
	if err := sink.Write(ctx, p); err != nil {
		e.log.Warn("failed to write batch progress", "batch_id", report.BatchID, "error", err)
	}
	e.log.ReconcileProgress(report.BatchID, report.Processed, report.Created, report.Updated, report.Errored)
}

// isCompletionMarker interprets a roster completion field. A parseable date
// or an affirmative token counts; anything else does not.
func isCompletionMarker(raw string) bool {
	if raw == "" {
		return false
	}
	if _, ok := parseDate(raw); ok {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1", "x", "complete", "completed", "done":
		return true
	}
	return false
}
