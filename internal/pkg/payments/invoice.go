package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcwilhelm/SalonOwl/app/models"
)

// GenerateInvoiceNumber produces a unique, human-sortable invoice number.
func GenerateInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix)
}

// buildLedgerEntry assembles a billing history row for a settlement event.
// Refund entries carry a negative amount.
func buildLedgerEntry(subscriptionID uint, amount float64, taxRate float64, status, description, transactionID string, now time.Time) *models.BillingHistory {
	subtotal := amount
	tax := roundCents(subtotal * taxRate)
	return &models.BillingHistory{
		SubscriptionID: subscriptionID,
		Date:           now,
		Amount:         amount,
		Status:         status,
		Description:    description,
		TransactionID:  transactionID,
		InvoiceNumber:  GenerateInvoiceNumber(now),
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          roundCents(subtotal + tax),
	}
}

func roundCents(v float64) float64 {
	return float64(MinorUnits(v)) / 100
}
