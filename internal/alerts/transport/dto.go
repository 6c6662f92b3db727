// Package transport defines the request/response DTOs for the alerts API.
package transport

import (
	"time"

	"kitflow_backend/internal/alerts/repository"

	"github.com/google/uuid"
)

// AlertResponse is the API representation of an alert.
type AlertResponse struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	LeadID         uuid.UUID  `json:"leadId"`
	RelatedLeadID  *uuid.UUID `json:"relatedLeadId,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy *uuid.UUID `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ToAlertResponse maps a stored alert to its API representation.
func ToAlertResponse(a repository.Alert) AlertResponse {
	return AlertResponse{
		ID:             a.ID,
		Type:           a.Type,
		Severity:       a.Severity,
		LeadID:         a.LeadID,
		RelatedLeadID:  a.RelatedLeadID,
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
		CreatedAt:      a.CreatedAt,
	}
}
