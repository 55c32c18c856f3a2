package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/marcwilhelm/SalonOwl/internal/pkg/database"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/payments"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/usercontext"
)

const billingRequestTimeout = 20 * time.Second

type intentRequest struct {
	PlanID       uint   `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	OwnerID      uint   `json:"owner_id"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

// HandleCreateSubscriptionIntent starts checkout for a new subscription.
func HandleCreateSubscriptionIntent(c *fiber.Ctx) error {
	return handleIntent(c, func(svc *payments.Service, ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResponse, error) {
		return svc.CreateSubscriptionIntent(ctx, in)
	})
}

// HandleCreateUpgradeIntent starts checkout for a plan upgrade.
func HandleCreateUpgradeIntent(c *fiber.Ctx) error {
	return handleIntent(c, func(svc *payments.Service, ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResponse, error) {
		return svc.CreateUpgradeIntent(ctx, in)
	})
}

// HandleCreateDowngradeIntent starts checkout for a plan downgrade.
func HandleCreateDowngradeIntent(c *fiber.Ctx) error {
	return handleIntent(c, func(svc *payments.Service, ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResponse, error) {
		return svc.CreateDowngradeIntent(ctx, in)
	})
}

func handleIntent(c *fiber.Ctx, create func(*payments.Service, context.Context, payments.CreateIntentInput) (*payments.IntentResponse, error)) error {
	var req intentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid request body",
		})
	}

	userCtx := usercontext.GetUserContext(c)
	ownerID := userCtx.UserID
	// Admins may act on behalf of an owner.
	if userCtx.IsAdmin && req.OwnerID != 0 {
		ownerID = req.OwnerID
	}

	svc := payments.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	resp, err := create(svc, ctx, payments.CreateIntentInput{
		OwnerID:      ownerID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

// HandleCancelPendingPayment cancels a pending checkout before it completes.
func HandleCancelPendingPayment(c *fiber.Ctx) error {
	paymentID := c.Params("id")
	if paymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "payment id is required",
		})
	}

	svc := payments.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	if err := svc.CancelPendingPayment(ctx, paymentID); err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "payment cancelled",
	})
}

// HandleRefundPayment refunds a settled subscription payment if the refund
// window has not elapsed.
func HandleRefundPayment(c *fiber.Ctx) error {
	paymentID := c.Params("id")
	if paymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "payment id is required",
		})
	}

	var req refundRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid request body",
			})
		}
	}

	svc := payments.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	result, err := svc.RefundSubscriptionPayment(ctx, payments.RefundInput{
		PaymentID: paymentID,
		Reason:    req.Reason,
	})
	if err != nil {
		return billingErrorResponse(c, err)
	}

	if result.WindowExpired {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "refund window expired",
			"data":    result,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "refund issued",
		"data":    result,
	})
}

// billingErrorResponse maps service errors to HTTP responses.
func billingErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payments.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, payments.ErrPlanNotFound),
		errors.Is(err, payments.ErrUserNotFound),
		errors.Is(err, payments.ErrPaymentNotFound),
		errors.Is(err, payments.ErrSubscriptionNotFound),
		errors.Is(err, payments.ErrNoActiveSubscription):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, payments.ErrDuplicateSubscription):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, payments.ErrNotAnUpgrade),
		errors.Is(err, payments.ErrNotADowngrade),
		errors.Is(err, payments.ErrInvalidState):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, payments.ErrPaymentsDisabled),
		errors.Is(err, payments.ErrGatewayNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": err.Error()})
	default:
		log.Errorf("billing request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "internal error"})
	}
}
