package models

import (
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Terminal reports whether a callback for this payment must be ignored.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentRefunded
}

type Payment struct {
	gorm.Model
	BookingID uint    `gorm:"column:booking_id;not null;uniqueIndex" json:"booking_id"`
	Amount    float64 `gorm:"column:amount;not null" json:"amount"`
	// MSISDN in international format without the leading plus, e.g. 2547...
	PhoneNumber string `gorm:"column:phone_number;size:20" json:"phone_number"`
	// CheckoutRequestID returned by the gateway at initiation; callbacks are
	// correlated against it. Not unique at the schema level because rows are
	// created with an empty reference before the gateway assigns one.
	ExternalReference string        `gorm:"column:external_reference;size:100;index" json:"external_reference"`
	Status            PaymentStatus `gorm:"column:status;size:20;not null;default:pending" json:"status"`
	Receipt           string        `gorm:"column:receipt;size:100" json:"receipt,omitempty"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}
