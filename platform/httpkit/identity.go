// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated actor's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access actor information without depending on Gin.
type Identity interface {
	// ActorID returns the authenticated actor's ID (client or professional).
	ActorID() uuid.UUID
	// Roles returns the actor's assigned roles.
	Roles() []string
	// HasRole checks if the actor has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the actor is authenticated.
	IsAuthenticated() bool
}

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

	var roleList []string
	if rolesOK {
		roleList, _ = roles.([]string)
	}

	return &identity{
		actorID:       id,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the actor is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
