package models

import (
	"time"
)

const (
	AppointmentStatusPending   = "pending"
	AppointmentStatusBooked    = "booked"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusCompleted = "completed"
)

// Appointment is the slim appointment surface the billing engine touches:
// a successful payment books the slot, a failed or cancelled payment frees it.
// Scheduling and the rest of the appointment lifecycle live in the booking CRUD.
type Appointment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	SalonID   uint      `gorm:"not null;index" json:"salon_id"`
	Status    string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	StartsAt  time.Time `gorm:"type:timestamp;not null" json:"starts_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
