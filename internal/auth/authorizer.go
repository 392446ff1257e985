package auth

import "github.com/repairdesk/repair-desk/internal/domain"

// Authorizer holds the chat identities allowed to act as staff or administrators.
// It is built once at startup and passed to every component that checks privileges.
type Authorizer struct {
	admins map[string]struct{}
	staff  map[string]struct{}
}

// NewAuthorizer builds the authorized-actor sets. Admins are implicitly staff.
func NewAuthorizer(adminIDs, staffIDs []string) *Authorizer {
	a := &Authorizer{
		admins: make(map[string]struct{}, len(adminIDs)),
		staff:  make(map[string]struct{}, len(adminIDs)+len(staffIDs)),
	}
	for _, id := range adminIDs {
		a.admins[id] = struct{}{}
		a.staff[id] = struct{}{}
	}
	for _, id := range staffIDs {
		a.staff[id] = struct{}{}
	}
	return a
}

// IsAdmin reports whether the actor holds administrative privilege.
func (a *Authorizer) IsAdmin(actor domain.Actor) bool {
	if a == nil {
		return false
	}
	_, ok := a.admins[actor.ExternalID]
	return ok
}

// IsStaff reports whether the actor holds staff privilege.
func (a *Authorizer) IsStaff(actor domain.Actor) bool {
	if a == nil {
		return false
	}
	_, ok := a.staff[actor.ExternalID]
	return ok
}

// AdminIDs lists the administrator identities.
func (a *Authorizer) AdminIDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, 0, len(a.admins))
	for id := range a.admins {
		ids = append(ids, id)
	}
	return ids
}
