package events

import (
	platformevents "kitflow_backend/platform/events"

	"github.com/google/uuid"
)

// Event re-exports the platform event interface.
type Event = platformevents.Event

// Bus re-exports the platform bus interface.
type Bus = platformevents.Bus

// Handler re-exports the platform handler interface.
type Handler = platformevents.Handler

// HandlerFunc re-exports the platform handler adapter.
type HandlerFunc = platformevents.HandlerFunc

// BaseEvent re-exports the platform base event.
type BaseEvent = platformevents.BaseEvent

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return platformevents.NewBaseEvent()
}

// LeadClaimed is published when a reviewer wins exclusive ownership of a lead.
type LeadClaimed struct {
	BaseEvent
	LeadID     uuid.UUID
	ReviewerID uuid.UUID
	Phase      string // "advocate" or "collections"
}

// EventName returns the unique event identifier.
func (LeadClaimed) EventName() string { return "leads.claimed" }

// AlertCreated is published when the alert engine persists a new alert,
// so the relay layer can push it to connected clients.
type AlertCreated struct {
	BaseEvent
	AlertID       uuid.UUID
	LeadID        uuid.UUID
	RelatedLeadID *uuid.UUID
	Type          string
	Severity      string
}

// EventName returns the unique event identifier.
func (AlertCreated) EventName() string { return "alerts.created" }

// BatchCompleted is published when a reconciliation batch finishes.
type BatchCompleted struct {
	BaseEvent
	BatchID   uuid.UUID
	Processed int
	Created   int
	Updated   int
	Errored   int
}

// EventName returns the unique event identifier.
func (BatchCompleted) EventName() string { return "reconcile.batch_completed" }
