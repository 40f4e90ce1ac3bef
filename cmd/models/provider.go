package models

import (
	"gorm.io/gorm"
)

type ServiceCategory struct {
	gorm.Model
	Name        string `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`
}

func (ServiceCategory) TableName() string {
	return "service_categories"
}

type ProviderProfile struct {
	gorm.Model
	UserID            uint    `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	BusinessName      string  `gorm:"column:business_name;size:200;not null" json:"business_name"`
	Description       string  `gorm:"column:description;type:text" json:"description"`
	HourlyRate        float64 `gorm:"column:hourly_rate;not null" json:"hourly_rate"`
	ServiceCategoryID uint    `gorm:"column:service_category_id;not null" json:"service_category_id"`
	IsAvailable       bool    `gorm:"column:is_available;default:true" json:"is_available"`
	ExperienceYears   int     `gorm:"column:experience_years;default:0" json:"experience_years"`

	// Denormalized review aggregate, recomputed transactionally on every
	// review insert. Never adjusted incrementally.
	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	ReviewCount   int     `gorm:"column:review_count;default:0" json:"review_count"`

	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ServiceCategory *ServiceCategory `gorm:"foreignKey:ServiceCategoryID" json:"service_category,omitempty"`
	Reviews         []Review         `gorm:"foreignKey:ProviderProfileID" json:"reviews,omitempty"`
}

func (ProviderProfile) TableName() string {
	return "provider_profiles"
}
