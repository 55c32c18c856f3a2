package payments

import (
	"math"
	"strings"
	"time"
)

// Gateway metadata keys attached to every payment intent. The webhook
// reconciler uses them to correlate asynchronous events back to local rows.
const (
	GatewayMetaPaymentID    = "payment_id"
	GatewayMetaOwnerID      = "owner_id"
	GatewayMetaPlanID       = "plan_id"
	GatewayMetaBillingCycle = "billing_cycle"
	GatewayMetaPurpose      = "purpose"
)

const (
	PurposeSubscription = "subscription"
	PurposeUpgrade      = "upgrade"
	PurposeDowngrade    = "downgrade"
	PurposeAppointment  = "appointment"
)

// Pending intents expire after one billing period.
const (
	MonthlyIntentTTL = 30 * 24 * time.Hour
	YearlyIntentTTL  = 365 * 24 * time.Hour
)

// EventKind is the closed set of webhook event types the reconciler handles.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
	EventPaymentCanceled
	EventChargeRefunded
)

// ParseEventKind maps a raw gateway event type to an EventKind. Unrecognized
// types map to EventUnknown and are acknowledged without processing.
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case "payment_intent.succeeded":
		return EventPaymentSucceeded
	case "payment_intent.payment_failed":
		return EventPaymentFailed
	case "payment_intent.canceled":
		return EventPaymentCanceled
	case "charge.refunded":
		return EventChargeRefunded
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventPaymentFailed:
		return "payment_failed"
	case EventPaymentCanceled:
		return "payment_canceled"
	case EventChargeRefunded:
		return "charge_refunded"
	default:
		return "unknown"
	}
}

// Event is a verified, normalized webhook event.
type Event struct {
	ID       string
	Type     string
	Kind     EventKind
	IntentID string
	ChargeID string
	Payload  []byte
}

// CreateIntentInput is the request for any of the intent-creation operations.
type CreateIntentInput struct {
	OwnerID      uint   `json:"owner_id" validate:"required"`
	PlanID       uint   `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
}

// PlanSummary and OwnerSummary are the caller-facing projections embedded in
// the intent-creation response.
type PlanSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type OwnerSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// IntentResponse is returned to the authenticated client, which completes the
// payment directly with the gateway using the client secret. The local row
// stays pending until the webhook arrives.
type IntentResponse struct {
	PaymentID    string       `json:"payment_id"`
	ClientSecret string       `json:"client_secret"`
	Amount       float64      `json:"amount"`
	Currency     string       `json:"currency"`
	Plan         PlanSummary  `json:"plan"`
	Owner        OwnerSummary `json:"owner"`
	BillingCycle string       `json:"billing_cycle"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// RefundInput requests a refund of a paid subscription payment.
type RefundInput struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Reason    string `json:"reason"`
}

// RefundResult is a business outcome, not an error: a refund refused because
// the window expired sets WindowExpired and carries no gateway refund id.
type RefundResult struct {
	WindowExpired bool    `json:"window_expired"`
	WindowDays    int     `json:"window_days"`
	ElapsedDays   int     `json:"elapsed_days"`
	RefundID      string  `json:"refund_id,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

// UsageCounts are the owner's current resource counts used to seed a new
// subscription's usage counters.
type UsageCounts struct {
	Bookings  int
	Staff     int
	Locations int
}

// MinorUnits converts a decimal amount to the gateway's minor currency units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// NormalizeRefundReason maps free-text refund reasons onto the gateway's
// limited reason enum, defaulting to requested_by_customer.
func NormalizeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "duplicate":
		return "duplicate"
	case "fraud", "fraudulent":
		return "fraudulent"
	default:
		return "requested_by_customer"
	}
}
