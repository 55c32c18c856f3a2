package payments

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcwilhelm/SalonOwl/app/models"
)

func TestGenerateInvoiceNumber(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^INV-20250314-[0-9A-F]{8}$`)

	first := GenerateInvoiceNumber(now)
	second := GenerateInvoiceNumber(now)

	assert.Regexp(t, pattern, first)
	assert.Regexp(t, pattern, second)
	assert.NotEqual(t, first, second)
}

func TestBuildLedgerEntry(t *testing.T) {
	now := time.Now()

	entry := buildLedgerEntry(3, 29, 0.19, models.BillingHistoryStatusPaid, "Subscription to Starter plan (monthly)", "pi_1", now)
	require.NotNil(t, entry)
	assert.Equal(t, uint(3), entry.SubscriptionID)
	assert.Equal(t, 29.0, entry.Amount)
	assert.Equal(t, 29.0, entry.Subtotal)
	assert.Equal(t, 5.51, entry.Tax)
	assert.Equal(t, 34.51, entry.Total)
	assert.Equal(t, "pi_1", entry.TransactionID)
	assert.NotEmpty(t, entry.InvoiceNumber)
}

func TestBuildLedgerEntryRefund(t *testing.T) {
	entry := buildLedgerEntry(3, -29, 0, models.BillingHistoryStatusRefunded, "Subscription payment refunded", "re_1", time.Now())
	assert.Equal(t, -29.0, entry.Amount)
	assert.Equal(t, 0.0, entry.Tax)
	assert.Equal(t, -29.0, entry.Total)
}
