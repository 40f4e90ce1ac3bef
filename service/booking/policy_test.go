package booking_test

import (
	"testing"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"github.com/blankops-000/JOB-LINK/service/booking"
	"github.com/stretchr/testify/assert"
)

var allStatuses = []models.BookingStatus{
	models.BookingPending,
	models.BookingConfirmed,
	models.BookingInProgress,
	models.BookingCompleted,
	models.BookingCancelled,
}

func TestCanTransition_ClientCanOnlyCancelOwnBooking(t *testing.T) {
	assert.True(t, booking.CanTransition(models.RoleClient, models.BookingPending, models.BookingCancelled, true))
	assert.True(t, booking.CanTransition(models.RoleClient, models.BookingConfirmed, models.BookingCancelled, true))
	assert.True(t, booking.CanTransition(models.RoleClient, models.BookingInProgress, models.BookingCancelled, true))

	assert.False(t, booking.CanTransition(models.RoleClient, models.BookingPending, models.BookingCancelled, false),
		"clients must not cancel other clients' bookings")
	assert.False(t, booking.CanTransition(models.RoleClient, models.BookingPending, models.BookingConfirmed, true),
		"clients must not accept bookings")
	assert.False(t, booking.CanTransition(models.RoleClient, models.BookingInProgress, models.BookingCompleted, true))
}

func TestCanTransition_ProviderLifecycle(t *testing.T) {
	assert.True(t, booking.CanTransition(models.RoleProvider, models.BookingPending, models.BookingConfirmed, true))
	assert.True(t, booking.CanTransition(models.RoleProvider, models.BookingConfirmed, models.BookingInProgress, true))
	assert.True(t, booking.CanTransition(models.RoleProvider, models.BookingInProgress, models.BookingCompleted, true))
	assert.True(t, booking.CanTransition(models.RoleProvider, models.BookingPending, models.BookingCancelled, true))

	// No skipping stages.
	assert.False(t, booking.CanTransition(models.RoleProvider, models.BookingPending, models.BookingInProgress, true))
	assert.False(t, booking.CanTransition(models.RoleProvider, models.BookingPending, models.BookingCompleted, true))
	assert.False(t, booking.CanTransition(models.RoleProvider, models.BookingConfirmed, models.BookingCompleted, true))

	// Not the booked provider.
	assert.False(t, booking.CanTransition(models.RoleProvider, models.BookingPending, models.BookingConfirmed, false))
	assert.False(t, booking.CanTransition(models.RoleProvider, models.BookingConfirmed, models.BookingCancelled, false))
}

func TestCanTransition_AdminMayForceNonTerminal(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to {
				continue
			}
			got := booking.CanTransition(models.RoleAdmin, from, to, false)
			if from.Terminal() {
				assert.False(t, got, "admin must not move booking out of %s", from)
			} else {
				assert.True(t, got, "admin should be able to force %s -> %s", from, to)
			}
		}
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	roles := []string{models.RoleClient, models.RoleProvider, models.RoleAdmin}
	for _, role := range roles {
		for _, to := range allStatuses {
			assert.False(t, booking.CanTransition(role, models.BookingCompleted, to, true),
				"%s moved booking out of completed", role)
			assert.False(t, booking.CanTransition(role, models.BookingCancelled, to, true),
				"%s moved booking out of cancelled", role)
		}
	}
}

func TestCanTransition_RejectsInvalidInput(t *testing.T) {
	assert.False(t, booking.CanTransition(models.RoleAdmin, "bogus", models.BookingConfirmed, true))
	assert.False(t, booking.CanTransition(models.RoleAdmin, models.BookingPending, "bogus", true))
	assert.False(t, booking.CanTransition(models.RoleClient, models.BookingPending, models.BookingPending, true),
		"no-op transitions are not transitions")
	assert.False(t, booking.CanTransition("superuser", models.BookingPending, models.BookingConfirmed, true),
		"unknown roles get nothing")
}

// Non-admin roles must only ever move bookings along the lifecycle edges:
// forward one stage at a time, or sideways into cancelled.
func TestCanTransition_NonAdminStaysOnLifecycleEdges(t *testing.T) {
	legal := map[models.BookingStatus][]models.BookingStatus{
		models.BookingPending:    {models.BookingConfirmed, models.BookingCancelled},
		models.BookingConfirmed:  {models.BookingInProgress, models.BookingCancelled},
		models.BookingInProgress: {models.BookingCompleted, models.BookingCancelled},
	}

	isLegal := func(from, to models.BookingStatus) bool {
		for _, t := range legal[from] {
			if t == to {
				return true
			}
		}
		return false
	}

	for _, role := range []string{models.RoleClient, models.RoleProvider} {
		for _, from := range allStatuses {
			for _, to := range allStatuses {
				if booking.CanTransition(role, from, to, true) {
					assert.True(t, isLegal(from, to),
						"%s allowed off-lifecycle transition %s -> %s", role, from, to)
				}
			}
		}
	}
}
