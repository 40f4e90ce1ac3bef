package models

import (
	"gorm.io/gorm"
)

type Review struct {
	gorm.Model
	BookingID         uint   `gorm:"column:booking_id;not null;uniqueIndex" json:"booking_id"`
	ClientID          uint   `gorm:"column:client_id;not null;index" json:"client_id"`
	ProviderProfileID uint   `gorm:"column:provider_profile_id;not null;index" json:"provider_profile_id"`
	Rating            int    `gorm:"column:rating;not null" json:"rating"`
	Comment           string `gorm:"column:comment;type:text" json:"comment"`

	Booking         *Booking         `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	Client          *User            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProviderProfile *ProviderProfile `gorm:"foreignKey:ProviderProfileID" json:"-"`
}
