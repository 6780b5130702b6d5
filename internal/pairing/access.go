package pairing

import (
	"time"

	"github.com/hashicorp/go-set/v3"

	"github.com/charleshuang3/medipair/internal/identity"
	"github.com/charleshuang3/medipair/internal/models"
)

// Access policy for invitation and pair rows, equivalent to row-level
// security. The UI/client tier cannot be trusted, and the spec of this
// service must not assume a particular backend's policy engine, so these
// predicates are re-checked at the service boundary even where the database
// enforces the same rules.
//
// All predicates are pure; callers supply the clock where validity depends
// on time.

var (
	knownRoles = set.From([]string{models.RolePatient, models.RoleSupporter})

	knownStatuses = set.From([]string{
		models.InvitationPending,
		models.InvitationAccepted,
		models.InvitationRejected,
	})
)

// validStatusFilter rejects list filters naming a status that is never
// stored ("expired" is derived, not a row value).
func validStatusFilter(statuses []string) error {
	for _, s := range statuses {
		if !knownStatuses.Contains(s) {
			return validationError("unknown invitation status: " + s)
		}
	}
	return nil
}

// ValidRoleCombination reports whether an inviter with inviterRole may
// invite someone into targetRole. Exactly one patient and one supporter,
// in either direction.
func ValidRoleCombination(inviterRole, targetRole string) bool {
	if !knownRoles.Contains(inviterRole) || !knownRoles.Contains(targetRole) {
		return false
	}
	return inviterRole != targetRole
}

// CanReadPair reports whether user participates in the pair.
func CanReadPair(user *identity.User, pair *models.Pair) bool {
	if user == nil || pair == nil {
		return false
	}
	return pair.HasParticipant(user.ID)
}

// CanTerminatePair is the same population as CanReadPair.
func CanTerminatePair(user *identity.User, pair *models.Pair) bool {
	return CanReadPair(user, pair)
}

// CanReadInvitation reports whether user is the inviter or the addressed
// invitee.
func CanReadInvitation(user *identity.User, inv *models.Invitation) bool {
	if user == nil || inv == nil {
		return false
	}
	return user.ID == inv.InviterID ||
		normalizeEmail(user.Email) == normalizeEmail(inv.InviteeEmail)
}

// CanRespond reports whether user is the addressed invitee of a currently
// valid (pending, unexpired as of now) invitation.
func CanRespond(user *identity.User, inv *models.Invitation, now time.Time) bool {
	if user == nil || inv == nil {
		return false
	}
	if normalizeEmail(user.Email) != normalizeEmail(inv.InviteeEmail) {
		return false
	}
	return inv.Status == models.InvitationPending && !now.After(inv.ExpiresAt)
}
