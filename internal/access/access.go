// Package access maps an actor and an organization to the capability the
// actor holds in it.
package access

import (
	"fmt"
	"slices"

	"github.com/bissquit/statusroom/internal/domain"
)

// Capability is what an actor may do within one organization.
type Capability string

// Capabilities.
const (
	Admin        Capability = "admin"
	Collaborator Capability = "collaborator"
	Outsider     Capability = "outsider"
	// Suspended is never produced by Evaluate: a suspended collaborator goes
	// back to a pending request and evaluates as Outsider until re-accepted.
	Suspended Capability = "suspended"
)

// Writers may mutate service status and incidents.
var Writers = []Capability{Admin, Collaborator}

// Evaluate returns the capability of actor in org. It never blocks.
func Evaluate(actor domain.Actor, org *domain.Organization) Capability {
	if org == nil || actor.ID == "" {
		return Outsider
	}
	if actor.ID == org.AdminID {
		return Admin
	}
	if org.HasCollaborator(actor.ID) {
		return Collaborator
	}
	return Outsider
}

// In reports whether c is one of allowed.
func (c Capability) In(allowed ...Capability) bool {
	return slices.Contains(allowed, c)
}

// Require fails closed with a domain.ErrForbidden-wrapped error when actor
// lacks every capability in allowed.
func Require(actor domain.Actor, org *domain.Organization, action string, allowed ...Capability) error {
	if Evaluate(actor, org).In(allowed...) {
		return nil
	}
	if slices.Equal(allowed, []Capability{Admin}) {
		return fmt.Errorf("%w: only the organization admin can %s", domain.ErrForbidden, action)
	}
	return fmt.Errorf("%w: only the organization admin or collaborators can %s", domain.ErrForbidden, action)
}
