package booking

import (
	"time"

	"github.com/blankops-000/JOB-LINK/cmd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Overlaps reports whether two half-open windows [start, start+hours)
// intersect.
func Overlaps(aStart time.Time, aHours int, bStart time.Time, bHours int) bool {
	aEnd := aStart.Add(time.Duration(aHours) * time.Hour)
	bEnd := bStart.Add(time.Duration(bHours) * time.Hour)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// findConflicts locks and returns the provider's confirmed/in-progress
// bookings that overlap the candidate window. It must run inside the same
// transaction as the write that depends on the answer. The locks cover
// existing rows only: a caller racing another transaction whose booking is
// still pending must first serialize on the provider profile row, as the
// accept path does.
func findConflicts(tx *gorm.DB, providerProfileID uint, start time.Time, hours int, excludeBookingID uint) ([]models.Booking, error) {
	end := start.Add(time.Duration(hours) * time.Hour)

	var conflicts []models.Booking
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_profile_id = ? AND id <> ?", providerProfileID, excludeBookingID).
		Where("status IN ?", []models.BookingStatus{models.BookingConfirmed, models.BookingInProgress}).
		Where("scheduled_at < ? AND ? < scheduled_at + make_interval(hours => duration_hours)", end, start).
		Find(&conflicts).Error
	return conflicts, err
}
