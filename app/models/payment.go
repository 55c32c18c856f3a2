package models

import (
	"time"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// Payment is a one-off appointment payment. It shares the payment status
// enum with SubscriptionPayment and is reconciled by the same webhook
// events, but settlement drives the linked appointment's status instead
// of any subscription state.
type Payment struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	AppointmentID         uint       `gorm:"not null;uniqueIndex" json:"appointment_id"`
	Amount                float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method                string     `gorm:"type:varchar(32);not null;default:'card'" json:"method"`
	Status                string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	StripePaymentIntentID string     `gorm:"type:varchar(191);index" json:"stripe_payment_intent_id"`
	PaymentDate           *time.Time `gorm:"type:timestamp;default:null" json:"payment_date,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
