package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive              = "active"
	SubscriptionStatusPendingCancellation = "pending_cancellation"
	SubscriptionStatusCancelled           = "cancelled"
	SubscriptionStatusExpired             = "expired"
)

// Subscription is the current billing state of a salon owner. At most one
// active subscription exists per owner; the invariant is enforced before
// intent creation and re-checked inside the settlement transaction.
// Rows are never deleted, only moved through status transitions.
type Subscription struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	OwnerID         uint             `gorm:"not null;index:idx_subscriptions_owner_status,priority:1" json:"owner_id"`
	PlanID          uint             `gorm:"not null;index" json:"plan_id"`
	Plan            SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status          string           `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_owner_status,priority:2" json:"status"`
	BillingCycle    string           `gorm:"type:varchar(16);not null" json:"billing_cycle" validate:"oneof=monthly yearly"`
	Amount          float64          `gorm:"type:decimal(10,2);not null" json:"amount"`
	StartDate       time.Time        `gorm:"type:timestamp;not null" json:"start_date"`
	NextBillingDate time.Time        `gorm:"type:timestamp;not null" json:"next_billing_date"`
	PaymentID       string           `gorm:"type:varchar(64);index" json:"payment_id"`
	UsedBookings    int              `gorm:"not null;default:0" json:"used_bookings"`
	UsedStaff       int              `gorm:"not null;default:0" json:"used_staff"`
	UsedLocations   int              `gorm:"not null;default:0" json:"used_locations"`
	MaxBookings     int              `gorm:"not null;default:0" json:"max_bookings"`
	MaxStaff        int              `gorm:"not null;default:0" json:"max_staff"`
	MaxLocations    int              `gorm:"not null;default:1" json:"max_locations"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently entitles the owner.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// NextBillingDateFor computes the next billing date for a cycle starting at from.
func NextBillingDateFor(cycle string, from time.Time) time.Time {
	if cycle == BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// GetActiveSubscriptionByOwner returns the owner's active subscription or
// gorm.ErrRecordNotFound.
func GetActiveSubscriptionByOwner(db *gorm.DB, ownerID uint) (*Subscription, error) {
	var sub Subscription
	err := db.Where("owner_id = ? AND status = ?", ownerID, SubscriptionStatusActive).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
