// Package domain provides core business rules for the leads bounded context.
package domain

// Lead lifecycle statuses. A lead starts at SUBMITTED and is never deleted;
// it persists through the terminal states.
const (
	StatusSubmitted      = "SUBMITTED"
	StatusAdvocateReview = "ADVOCATE_REVIEW"
	StatusQualified      = "QUALIFIED"
	StatusSentToConsult  = "SENT_TO_CONSULT"
	StatusApproved       = "APPROVED"
	StatusReadyToShip    = "READY_TO_SHIP"
	StatusShipped        = "SHIPPED"
	StatusDelivered      = "DELIVERED"
	StatusCollections    = "COLLECTIONS"
	StatusKitReturning   = "KIT_RETURNING"
	StatusKitCompleted   = "KIT_COMPLETED"
	StatusReturned       = "RETURNED"
)

// Reviewer roles recognized by the transition and assignment rules.
const (
	RoleAdvocate    = "advocate"
	RoleCollections = "collections"
	RoleFulfillment = "fulfillment"
	RoleAdmin       = "admin"
)

var knownStatuses = map[string]struct{}{
	StatusSubmitted:      {},
	StatusAdvocateReview: {},
	StatusQualified:      {},
	StatusSentToConsult:  {},
	StatusApproved:       {},
	StatusReadyToShip:    {},
	StatusShipped:        {},
	StatusDelivered:      {},
	StatusCollections:    {},
	StatusKitReturning:   {},
	StatusKitCompleted:   {},
	StatusReturned:       {},
}

// terminalStatuses are statuses where the pipeline is complete.
var terminalStatuses = map[string]bool{
	StatusKitCompleted: true,
	StatusReturned:     true,
}

// advocateTargets are the statuses an advocate may set explicitly.
var advocateTargets = map[string]bool{
	StatusAdvocateReview: true,
	StatusQualified:      true,
	StatusSentToConsult:  true,
}

// collectionsTargets are the statuses a collections agent may set explicitly.
var collectionsTargets = map[string]bool{
	StatusCollections:  true,
	StatusKitCompleted: true,
}

// fulfillmentEdges are the sequential shipment edges fulfillment may walk.
var fulfillmentEdges = map[string]string{
	StatusApproved:    StatusReadyToShip,
	StatusReadyToShip: StatusShipped,
	StatusShipped:     StatusDelivered,
}

// IsKnownStatus reports whether status is a member of the fixed enumeration.
func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsTerminalStatus reports whether status is terminal.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

// CanTransition reports whether an actor holding any of the given roles may
// explicitly move a lead from one status to another. It answers the per-role
// allow-list only; disposition-driven transitions bypass it.
func CanTransition(roles []string, from, to string) bool {
	if !IsKnownStatus(to) || IsTerminalStatus(from) {
		return false
	}

	for _, role := range roles {
		switch role {
		case RoleAdmin:
			return true
		case RoleAdvocate:
			if advocateTargets[to] {
				return true
			}
		case RoleCollections:
			if collectionsTargets[to] {
				return true
			}
		case RoleFulfillment:
			if fulfillmentEdges[from] == to {
				return true
			}
		}
	}

	return false
}

// completionPath lists the statuses a kit walks through on its way to
// completion. When a completion record arrives for a lead that never saw the
// digital intermediates, the skipped segment of this path becomes the audit
// note: physical completion evidence outranks missing digital intermediates.
var completionPath = []string{
	StatusSubmitted,
	StatusAdvocateReview,
	StatusQualified,
	StatusSentToConsult,
	StatusApproved,
	StatusReadyToShip,
	StatusShipped,
	StatusDelivered,
	StatusKitReturning,
	StatusKitCompleted,
}

// CompletionJump resolves a kit-completion record against the lead's current
// status. It returns the implied intermediate statuses to record as an audit
// note and whether the jump applies. A lead already at KIT_COMPLETED yields
// (nil, false): the caller logs a no-op. RETURNED leads are not resurrected.
func CompletionJump(from string) (implied []string, ok bool) {
	if from == StatusKitCompleted || from == StatusReturned {
		return nil, false
	}

	// COLLECTIONS sits off the main path, chasing an unreturned kit after
	// delivery; only the return itself is implied from there.
	lookup := from
	if from == StatusCollections {
		lookup = StatusDelivered
	}

	// Find where the lead already is on the completion path; everything
	// after it, short of KIT_COMPLETED itself, was skipped.
	start := 0
	for i, s := range completionPath {
		if s == lookup {
			start = i + 1
			break
		}
	}

	for _, s := range completionPath[start:] {
		if s == StatusKitCompleted {
			break
		}
		implied = append(implied, s)
	}
	return implied, true
}
