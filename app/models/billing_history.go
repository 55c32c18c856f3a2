package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BillingHistoryStatusPaid     = "paid"
	BillingHistoryStatusRefunded = "refunded"
)

// BillingHistory is the append-only billing ledger. One row per settlement
// event (creation, upgrade, downgrade, refund); refunds carry a negative
// amount. Rows are never updated or deleted.
type BillingHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	Date           time.Time `gorm:"type:timestamp;not null;index" json:"date"`
	Amount         float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status         string    `gorm:"type:varchar(32);not null" json:"status"`
	Description    string    `gorm:"type:varchar(255)" json:"description"`
	TransactionID  string    `gorm:"type:varchar(191);index" json:"transaction_id"`
	InvoiceNumber  string    `gorm:"type:varchar(64);uniqueIndex" json:"invoice_number"`
	Subtotal       float64   `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax            float64   `gorm:"type:decimal(10,2);not null;default:0" json:"tax"`
	Total          float64   `gorm:"type:decimal(10,2);not null" json:"total"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ListBillingHistoryBySubscription returns the ledger for one subscription,
// newest first.
func ListBillingHistoryBySubscription(db *gorm.DB, subscriptionID uint) ([]BillingHistory, error) {
	var rows []BillingHistory
	err := db.Where("subscription_id = ?", subscriptionID).Order("date DESC").Find(&rows).Error
	return rows, err
}
