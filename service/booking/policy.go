package booking

import (
	"github.com/blankops-000/JOB-LINK/cmd/models"
)

// CanTransition reports whether an actor with the given role may move a
// booking from one status to another. isOwner means the caller is the
// booking's client (for role client) or the booked provider (for role
// provider). Admins may force any transition out of a non-terminal state;
// terminal states are final for everyone.
//
// Callers must evaluate this inside the same transaction that performs the
// status write, against the freshly locked row.
func CanTransition(role string, from, to models.BookingStatus, isOwner bool) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from.Terminal() {
		return false
	}

	switch role {
	case models.RoleAdmin:
		return true

	case models.RoleClient:
		return isOwner && to == models.BookingCancelled

	case models.RoleProvider:
		if !isOwner {
			return false
		}
		if to == models.BookingCancelled {
			return true
		}
		switch from {
		case models.BookingPending:
			return to == models.BookingConfirmed
		case models.BookingConfirmed:
			return to == models.BookingInProgress
		case models.BookingInProgress:
			return to == models.BookingCompleted
		}
		return false
	}

	return false
}
