package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// SubscriptionPlan is reference data for the billing engine. Plans are created
// and edited through the admin flow; once a live subscription references a plan
// the price fields are treated as immutable.
type SubscriptionPlan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=2,max=100"`
	Description  string    `gorm:"type:text" json:"description" validate:"max=1000"`
	PriceMonthly float64   `gorm:"type:decimal(10,2);not null" json:"price_monthly" validate:"gte=0"`
	PriceYearly  float64   `gorm:"type:decimal(10,2);not null" json:"price_yearly" validate:"gte=0"`
	MaxBookings  int       `gorm:"not null;default:0" json:"max_bookings"`
	MaxStaff     int       `gorm:"not null;default:0" json:"max_staff"`
	MaxLocations int       `gorm:"not null;default:1" json:"max_locations"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PriceForCycle returns the effective price for a billing cycle.
func (p *SubscriptionPlan) PriceForCycle(cycle string) (float64, error) {
	switch cycle {
	case BillingCycleMonthly:
		return p.PriceMonthly, nil
	case BillingCycleYearly:
		return p.PriceYearly, nil
	default:
		return 0, errors.New("unknown billing cycle: " + cycle)
	}
}

// IsValidBillingCycle reports whether cycle is one of the supported cycles.
func IsValidBillingCycle(cycle string) bool {
	return cycle == BillingCycleMonthly || cycle == BillingCycleYearly
}

// GetPlan loads a plan by ID.
func GetPlan(db *gorm.DB, id uint) (*SubscriptionPlan, error) {
	var plan SubscriptionPlan
	if err := db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
