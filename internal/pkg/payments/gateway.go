package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/webhook"
)

// GatewayConfig carries the gateway credentials for a single operation. It is
// loaded fresh from integration settings each time so key rotation takes
// effect immediately; nothing in this package holds long-lived gateway state.
type GatewayConfig struct {
	SecretKey string
	Currency  string
}

// IntentParams describe a remote payment intent to create.
type IntentParams struct {
	AmountMinor  int64
	Currency     string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

// Intent is the gateway-side result of creating a payment intent. The client
// secret is handed to the untrusted caller to complete payment client-side.
type Intent struct {
	ID           string
	ClientSecret string
}

// RefundParams describe a refund of a settled intent.
type RefundParams struct {
	IntentID    string
	AmountMinor int64
	Reason      string
	Metadata    map[string]string
}

// Gateway wraps the payment provider operations the engine needs.
type Gateway interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, params RefundParams) (string, error)
}

// GatewayFactory builds a gateway from per-operation configuration.
type GatewayFactory func(cfg GatewayConfig) Gateway

type stripeGateway struct {
	cfg GatewayConfig
}

// NewStripeGateway returns a Stripe-backed gateway. The secret key is applied
// at call time, matching the "always use latest settings" behavior.
func NewStripeGateway(cfg GatewayConfig) Gateway {
	return &stripeGateway{cfg: cfg}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	stripe.Key = g.cfg.SecretKey

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx

	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	if params.ReceiptEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	if params.Metadata != nil {
		piParams.Metadata = params.Metadata
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *stripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	stripe.Key = g.cfg.SecretKey

	cancelParams := &stripe.PaymentIntentCancelParams{}
	cancelParams.Context = ctx
	if _, err := paymentintent.Cancel(intentID, cancelParams); err != nil {
		return fmt.Errorf("cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

func (g *stripeGateway) CreateRefund(ctx context.Context, params RefundParams) (string, error) {
	stripe.Key = g.cfg.SecretKey

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.IntentID),
		Amount:        stripe.Int64(params.AmountMinor),
		Reason:        stripe.String(NormalizeRefundReason(params.Reason)),
	}
	refundParams.Context = ctx
	if params.Metadata != nil {
		refundParams.Metadata = params.Metadata
	}

	r, err := refund.New(refundParams)
	if err != nil {
		return "", fmt.Errorf("refund payment intent %s: %w", params.IntentID, err)
	}
	return r.ID, nil
}

// intentObject and chargeObject are the minimal projections of the event
// payloads the reconciler correlates on.
type intentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type chargeObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

// VerifyWebhookSignature checks the raw payload against the signature header
// using the gateway's verification primitive and returns a normalized event.
// No event is ever processed without passing this check.
func VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (*Event, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrWebhookSecretMissing
	}

	stripeEvent, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ev := &Event{
		ID:      stripeEvent.ID,
		Type:    string(stripeEvent.Type),
		Kind:    ParseEventKind(string(stripeEvent.Type)),
		Payload: payload,
	}

	switch ev.Kind {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentCanceled:
		var obj intentObject
		if err := json.Unmarshal(stripeEvent.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode payment intent object: %w", err)
		}
		ev.IntentID = obj.ID
	case EventChargeRefunded:
		var obj chargeObject
		if err := json.Unmarshal(stripeEvent.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode charge object: %w", err)
		}
		ev.ChargeID = obj.ID
		ev.IntentID = obj.PaymentIntent
	}

	return ev, nil
}
