package services

import (
	"userhub/internal/models"

	"github.com/google/uuid"
)

// IntentKind names an operation the authorization engine can evaluate.
type IntentKind int

const (
	IntentViewSelf IntentKind = iota + 1
	IntentViewUser
	IntentListUsers
	IntentUpdateSelf
	IntentUpdateUser
	IntentChangeOwnRole
	IntentChangeRole
	IntentDeleteUser
	IntentCreateAdmin
	IntentViewStatistics
	IntentViewActivity
	IntentSearchUsers
	IntentBulkChangeRole
	IntentExportUsers
)

// Intent is a parameterized operation to be authorized against an actor.
type Intent struct {
	Kind      IntentKind
	TargetID  uuid.UUID
	TargetIDs []uuid.UUID
}

func ViewSelfIntent() Intent               { return Intent{Kind: IntentViewSelf} }
func ViewUserIntent(id uuid.UUID) Intent   { return Intent{Kind: IntentViewUser, TargetID: id} }
func ListUsersIntent() Intent              { return Intent{Kind: IntentListUsers} }
func UpdateSelfIntent() Intent             { return Intent{Kind: IntentUpdateSelf} }
func UpdateUserIntent(id uuid.UUID) Intent { return Intent{Kind: IntentUpdateUser, TargetID: id} }
func ChangeOwnRoleIntent() Intent          { return Intent{Kind: IntentChangeOwnRole} }
func ChangeRoleIntent(id uuid.UUID) Intent { return Intent{Kind: IntentChangeRole, TargetID: id} }
func DeleteUserIntent(id uuid.UUID) Intent { return Intent{Kind: IntentDeleteUser, TargetID: id} }
func CreateAdminIntent() Intent            { return Intent{Kind: IntentCreateAdmin} }
func ViewStatisticsIntent() Intent         { return Intent{Kind: IntentViewStatistics} }
func ViewActivityIntent() Intent           { return Intent{Kind: IntentViewActivity} }
func SearchUsersIntent() Intent            { return Intent{Kind: IntentSearchUsers} }
func BulkChangeRoleIntent(ids []uuid.UUID) Intent {
	return Intent{Kind: IntentBulkChangeRole, TargetIDs: ids}
}
func ExportUsersIntent() Intent { return Intent{Kind: IntentExportUsers} }

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

const (
	msgAdminRequired   = "Access denied. Admin privileges required."
	msgViewOwnOnly     = "Access denied. You can only view your own profile."
	msgUpdateOther     = "Unauthorized to update this user"
	msgDeleteSelf      = "Cannot delete your own account."
	msgChangeOwnRole   = "Cannot change your own role."
	msgBulkIncludeSelf = "Cannot change your own role in bulk update."
	msgUnauthenticated = "Unauthenticated"
)

// Authorize decides whether the actor may perform the intent. It is a
// pure function of its arguments: no store access, no clock, no
// request state.
func Authorize(actor *models.User, intent Intent) Decision {
	if actor == nil {
		return deny(msgUnauthenticated)
	}

	switch intent.Kind {
	case IntentViewSelf, IntentUpdateSelf:
		return allow()

	case IntentViewUser:
		// Viewing another account is self-or-admin; there is no partial
		// view of somebody else's profile.
		if intent.TargetID == actor.ID || actor.IsAdmin() {
			return allow()
		}
		return deny(msgViewOwnOnly)

	case IntentUpdateUser:
		if intent.TargetID == actor.ID || actor.IsAdmin() {
			return allow()
		}
		return deny(msgUpdateOther)

	case IntentChangeOwnRole:
		// Nobody changes their own role, admins included.
		return deny(msgChangeOwnRole)

	case IntentChangeRole:
		if !actor.IsAdmin() {
			return deny(msgAdminRequired)
		}
		if intent.TargetID == actor.ID {
			return deny(msgChangeOwnRole)
		}
		return allow()

	case IntentDeleteUser:
		if !actor.IsAdmin() {
			return deny(msgAdminRequired)
		}
		if intent.TargetID == actor.ID {
			return deny(msgDeleteSelf)
		}
		return allow()

	case IntentBulkChangeRole:
		if !actor.IsAdmin() {
			return deny(msgAdminRequired)
		}
		// The actor's own id anywhere in the list denies the whole
		// operation; no partial update happens.
		for _, id := range intent.TargetIDs {
			if id == actor.ID {
				return deny(msgBulkIncludeSelf)
			}
		}
		return allow()

	case IntentListUsers, IntentCreateAdmin, IntentViewStatistics,
		IntentViewActivity, IntentSearchUsers, IntentExportUsers:
		if actor.IsAdmin() {
			return allow()
		}
		return deny(msgAdminRequired)
	}

	return deny(msgAdminRequired)
}
