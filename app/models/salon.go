package models

import (
	"time"

	"gorm.io/gorm"
)

// Salon is a location owned by a salon owner. The billing engine only counts
// salons and staff when seeding subscription usage counters.
type Salon struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Name      string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Address   string         `gorm:"type:varchar(255)" json:"address"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// StaffMember is an employee attached to a salon.
type StaffMember struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SalonID   uint           `gorm:"not null;index" json:"salon_id"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Name      string         `gorm:"type:varchar(150);not null" json:"name"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
