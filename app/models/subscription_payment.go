package models

import (
	"encoding/json"
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Metadata keys stored on subscription payments. upgrade_type and
// current_subscription_id mark a payment as a plan change instead of a
// fresh subscription; the webhook reconciler branches on their presence.
const (
	MetaUpgradeType           = "upgrade_type"
	MetaCurrentSubscriptionID = "current_subscription_id"
	MetaCancelReason          = "cancel_reason"
	MetaRefundID              = "refund_id"
	MetaRefundWindowDays      = "refund_window_days"
	MetaRefundElapsedDays     = "refund_elapsed_days"
)

const (
	UpgradeTypeUpgrade   = "upgrade"
	UpgradeTypeDowngrade = "downgrade"
)

// SubscriptionPayment is a pending payment intent for a subscription purchase
// or plan change. Created with status pending before the gateway call; the
// webhook path only ever mutates status, timestamps and metadata. Never deleted.
type SubscriptionPayment struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	PublicID              string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"public_id"`
	OwnerID               uint       `gorm:"not null;index" json:"owner_id"`
	PlanID                uint       `gorm:"not null;index" json:"plan_id"`
	Amount                float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	BillingCycle          string     `gorm:"type:varchar(16);not null" json:"billing_cycle"`
	Status                string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	StripePaymentIntentID string     `gorm:"type:varchar(191);index" json:"stripe_payment_intent_id"`
	ClientSecret          string     `gorm:"type:varchar(255)" json:"-"`
	ExpiresAt             time.Time  `gorm:"type:timestamp;not null;index" json:"expires_at"`
	PaidAt                *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	MetadataJSON          string     `gorm:"type:text" json:"-"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Metadata decodes the metadata bag. A missing or broken bag decodes to an
// empty map so callers can probe keys without error handling.
func (p *SubscriptionPayment) Metadata() map[string]string {
	meta := map[string]string{}
	if p.MetadataJSON == "" {
		return meta
	}
	_ = json.Unmarshal([]byte(p.MetadataJSON), &meta)
	return meta
}

// SetMetadata merges the given keys into the metadata bag.
func (p *SubscriptionPayment) SetMetadata(kv map[string]string) {
	meta := p.Metadata()
	for k, v := range kv {
		meta[k] = v
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	p.MetadataJSON = string(raw)
}

// IsPlanChange reports whether this payment represents an upgrade or
// downgrade of an existing subscription rather than a fresh one.
func (p *SubscriptionPayment) IsPlanChange() (upgradeType string, currentSubscriptionID string, ok bool) {
	meta := p.Metadata()
	upgradeType = meta[MetaUpgradeType]
	currentSubscriptionID = meta[MetaCurrentSubscriptionID]
	ok = upgradeType != "" && currentSubscriptionID != ""
	return upgradeType, currentSubscriptionID, ok
}
