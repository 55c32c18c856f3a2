package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		eventType string
		want      EventKind
	}{
		{"payment_intent.succeeded", EventPaymentSucceeded},
		{"payment_intent.payment_failed", EventPaymentFailed},
		{"payment_intent.canceled", EventPaymentCanceled},
		{"charge.refunded", EventChargeRefunded},
		{"customer.created", EventUnknown},
		{"", EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEventKind(tt.eventType))
		})
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{29, 2900},
		{299.99, 29999},
		{0, 0},
		{0.1, 10},
		{19.999, 2000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MinorUnits(tt.amount), "amount %v", tt.amount)
	}
}

func TestNormalizeRefundReason(t *testing.T) {
	assert.Equal(t, "duplicate", NormalizeRefundReason("duplicate"))
	assert.Equal(t, "fraudulent", NormalizeRefundReason("FRAUD"))
	assert.Equal(t, "fraudulent", NormalizeRefundReason(" fraudulent "))
	assert.Equal(t, "requested_by_customer", NormalizeRefundReason("changed my mind"))
	assert.Equal(t, "requested_by_customer", NormalizeRefundReason(""))
}
