package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/marcwilhelm/SalonOwl/internal/pkg/database"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/payments"
)

const webhookRequestTimeout = 15 * time.Second

// newWebhookService builds the billing service for a delivery; a package
// variable so tests can substitute their own wiring.
var newWebhookService = func() *payments.Service {
	return payments.NewServiceFromDB(database.GetDB())
}

// HandlePaymentWebhook receives asynchronous payment events from the gateway.
// The signature is verified before anything else; an unverifiable delivery is
// rejected so the gateway retries it.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	svc := newWebhookService()
	ctx, cancel := context.WithTimeout(context.Background(), webhookRequestTimeout)
	defer cancel()

	ev, err := svc.ProcessWebhook(ctx, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrWebhookSecretMissing):
			ipv4, _ := GetClientIP(c)
			log.Errorf("webhook rejected, no signing secret configured (from %s)", ipv4)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "webhook_not_configured"})
		case errors.Is(err, payments.ErrInvalidSignature):
			ipv4, _ := GetClientIP(c)
			log.Warnf("webhook signature verification failed (from %s)", ipv4)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, payments.ErrEventOutOfOrder):
			// Non-2xx so the gateway redelivers once the payment has settled.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "event_out_of_order"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_failed"})
		}
	}

	// Processing failures after signature verification are logged and recorded
	// internally; the delivery is still acknowledged so the gateway does not
	// retry an event we have durably stored.
	return c.JSON(fiber.Map{"received": true, "type": ev.Type})
}
