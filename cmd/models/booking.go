package models

import (
	"time"

	"gorm.io/gorm"
)

// BookingStatus is a closed set; transitions between values are governed by
// the policy table in service/booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	gorm.Model
	ClientID          uint          `gorm:"column:client_id;not null;index" json:"client_id"`
	ProviderID        uint          `gorm:"column:provider_id;not null;index" json:"provider_id"`
	ProviderProfileID uint          `gorm:"column:provider_profile_id;not null;index" json:"provider_profile_id"`
	ServiceCategoryID uint          `gorm:"column:service_category_id;not null" json:"service_category_id"`
	ScheduledAt       time.Time     `gorm:"column:scheduled_at;not null" json:"scheduled_at"`
	DurationHours     int           `gorm:"column:duration_hours;not null" json:"duration_hours"`
	TotalAmount       float64       `gorm:"column:total_amount;not null" json:"total_amount"`
	Status            BookingStatus `gorm:"column:status;size:20;not null;default:pending" json:"status"`
	Address           string        `gorm:"column:address;type:text" json:"address"`
	SpecialRequests   string        `gorm:"column:special_requests;type:text" json:"special_requests"`

	Client          *User            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Provider        *User            `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	ProviderProfile *ProviderProfile `gorm:"foreignKey:ProviderProfileID" json:"provider_profile,omitempty"`
	ServiceCategory *ServiceCategory `gorm:"foreignKey:ServiceCategoryID" json:"service_category,omitempty"`
	Payment         *Payment         `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	Review          *Review          `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"review,omitempty"`
}

func (b *Booking) EndsAt() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationHours) * time.Hour)
}
