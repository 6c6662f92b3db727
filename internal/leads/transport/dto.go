// Package transport defines the request/response DTOs for the leads API.
package transport

import (
	"time"

	"kitflow_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the intake payload for direct lead creation.
type CreateLeadRequest struct {
	PlanID      string  `json:"planId" validate:"required,planid"`
	FirstName   string  `json:"firstName" validate:"required,max=100"`
	LastName    string  `json:"lastName" validate:"required,max=100"`
	Phone       string  `json:"phone" validate:"required,max=32"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	TestType    string  `json:"testType" validate:"required,max=64"`
}

// UpdateLeadRequest carries a partial update of a lead's mutable fields.
// When both a disposition and a status are supplied, the status derived from
// the disposition wins and the conflict is flagged in the response.
type UpdateLeadRequest struct {
	Status      *string `json:"status" validate:"omitempty,max=32"`
	Disposition *string `json:"disposition" validate:"omitempty,max=64"`
	TestType    *string `json:"testType" validate:"omitempty,max=64"`
}

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PlanID             string     `json:"planId"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Phone              string     `json:"phone"`
	DateOfBirth        *string    `json:"dateOfBirth,omitempty"`
	TrackingRef        *string    `json:"trackingRef,omitempty"`
	TestType           string     `json:"testType"`
	Status             string     `json:"status"`
	Disposition        *string    `json:"disposition,omitempty"`
	AdvocateID         *uuid.UUID `json:"advocateId,omitempty"`
	CollectionsAgentID *uuid.UUID `json:"collectionsAgentId,omitempty"`
	ReviewedAt         *time.Time `json:"reviewedAt,omitempty"`
	ContactAttempts    int        `json:"contactAttempts"`
	IsDuplicate        bool       `json:"isDuplicate"`
	HasActiveAlerts    bool       `json:"hasActiveAlerts"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// UpdateLeadResponse wraps the updated lead. StatusConflict is set when a
// caller-supplied status was overridden by the disposition-derived one.
type UpdateLeadResponse struct {
	Lead            LeadResponse `json:"lead"`
	StatusConflict  bool         `json:"statusConflict,omitempty"`
	RequestedStatus *string      `json:"requestedStatus,omitempty"`
}

// AlertSummary is the slim alert representation embedded in lead responses.
type AlertSummary struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Severity      string     `json:"severity"`
	LeadID        uuid.UUID  `json:"leadId"`
	RelatedLeadID *uuid.UUID `json:"relatedLeadId,omitempty"`
	Acknowledged  bool       `json:"acknowledged"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// LeadDetailResponse is a lead with its alerts. NewAlert carries an alert
// created as a side effect of the opportunistic duplicate check on read.
type LeadDetailResponse struct {
	Lead     LeadResponse   `json:"lead"`
	Alerts   []AlertSummary `json:"alerts"`
	NewAlert *AlertSummary  `json:"newAlert,omitempty"`
}

// ClaimResponse reports a claim attempt. Outcome is one of "claimed",
// "already_own", "already_assigned".
type ClaimResponse struct {
	Outcome string       `json:"outcome"`
	Lead    LeadResponse `json:"lead"`
	OwnerID *uuid.UUID   `json:"ownerId,omitempty"`
}

// ContactAttemptResponse reports the counter after an increment.
type ContactAttemptResponse struct {
	LeadID          uuid.UUID `json:"leadId"`
	ContactAttempts int       `json:"contactAttempts"`
}

// ToLeadResponse maps a stored lead to its API representation.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:                 lead.ID,
		PlanID:             lead.PlanID,
		FirstName:          lead.FirstName,
		LastName:           lead.LastName,
		Phone:              lead.Phone,
		TrackingRef:        lead.TrackingRef,
		TestType:           lead.TestType,
		Status:             lead.Status,
		Disposition:        lead.Disposition,
		AdvocateID:         lead.AdvocateID,
		CollectionsAgentID: lead.CollectionsAgentID,
		ReviewedAt:         lead.ReviewedAt,
		ContactAttempts:    lead.ContactAttempts,
		IsDuplicate:        lead.IsDuplicate,
		HasActiveAlerts:    lead.HasActiveAlerts,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
	if lead.DateOfBirth != nil {
		dob := lead.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &dob
	}
	return resp
}

// ToLeadResponses maps a slice of stored leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}
