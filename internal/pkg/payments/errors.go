package payments

import "errors"

// Validation errors (HTTP 400 on the API surface).
var (
	ErrInvalidArgument = errors.New("missing or invalid argument")
)

// Business-rule violations (HTTP 403/409). Callers are expected to branch on
// these with errors.Is.
var (
	ErrPlanNotFound          = errors.New("subscription plan not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateSubscription = errors.New("owner already has an active subscription")
	ErrNoActiveSubscription  = errors.New("owner has no active subscription")
	ErrNotAnUpgrade          = errors.New("target plan is not an upgrade")
	ErrNotADowngrade         = errors.New("target plan is not a downgrade")
	ErrInvalidState          = errors.New("payment is not in a state that allows this operation")
)

// Configuration errors (HTTP 500, operator-actionable).
var (
	ErrPaymentsDisabled     = errors.New("card payments are disabled")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrWebhookSecretMissing = errors.New("webhook secret is not configured")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// ErrEventOutOfOrder marks a webhook event that cannot be applied yet because
// a prerequisite event has not been recorded. The delivery is rejected without
// storing the event so the gateway redelivers it later.
var ErrEventOutOfOrder = errors.New("webhook event arrived out of order")
