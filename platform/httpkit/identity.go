// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated actor's identity as asserted by the
// external auth service. Every mutating operation trusts it as-is; no
// authentication is performed in this service.
type Identity interface {
	// ActorID returns the acting reviewer's ID.
	ActorID() uuid.UUID
	// Roles returns the actor's assigned roles.
	Roles() []string
	// HasRole checks if the actor has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the actor is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	actorID       uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) ActorID() uuid.UUID {
	return i.actorID
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if actor info is not present.
func GetIdentity(c *gin.Context) Identity {
	actorID, actorOK := c.Get(ContextActorIDKey)
	roles, rolesOK := c.Get(ContextRolesKey)

	if !actorOK {
		return &identity{authenticated: false}
	}

	id, ok := actorID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	result := &identity{actorID: id, authenticated: true}
	if rolesOK {
		if roleList, ok := roles.([]string); ok {
			result.roles = roleList
		}
	}

	return result
}
