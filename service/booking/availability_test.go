package booking_test

import (
	"testing"
	"time"

	"github.com/blankops-000/JOB-LINK/service/booking"
	"github.com/stretchr/testify/assert"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name   string
		aStart time.Time
		aHours int
		bStart time.Time
		bHours int
		want   bool
	}{
		{"identical windows", at(10), 2, at(10), 2, true},
		{"partial overlap at tail", at(11), 2, at(10), 2, true},
		{"partial overlap at head", at(9), 2, at(10), 2, true},
		{"contained window", at(10), 4, at(11), 1, true},
		{"containing window", at(11), 1, at(10), 4, true},
		{"back to back, earlier first", at(10), 2, at(12), 2, false},
		{"back to back, later first", at(12), 2, at(10), 2, false},
		{"disjoint", at(8), 1, at(14), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booking.Overlaps(tt.aStart, tt.aHours, tt.bStart, tt.bHours))
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	pairs := []struct {
		aStart time.Time
		aHours int
		bStart time.Time
		bHours int
	}{
		{at(10), 2, at(11), 2},
		{at(10), 2, at(12), 1},
		{at(7), 3, at(9), 3},
	}
	for _, p := range pairs {
		assert.Equal(t,
			booking.Overlaps(p.aStart, p.aHours, p.bStart, p.bHours),
			booking.Overlaps(p.bStart, p.bHours, p.aStart, p.aHours))
	}
}
