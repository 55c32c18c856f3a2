package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/marcwilhelm/SalonOwl/app/models"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/database"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/usercontext"
)

// HandleGetMySubscription returns the caller's active subscription.
func HandleGetMySubscription(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)

	sub, err := models.GetActiveSubscriptionByOwner(database.GetDB(), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "no active subscription",
			})
		}
		log.Errorf("failed to load subscription for owner %d: %v", ownerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sub,
	})
}

// HandleGetBillingHistory returns the billing ledger for the caller's active
// subscription, newest entry first.
func HandleGetBillingHistory(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)
	db := database.GetDB()

	sub, err := models.GetActiveSubscriptionByOwner(db, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "no active subscription",
			})
		}
		log.Errorf("failed to load subscription for owner %d: %v", ownerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "internal error",
		})
	}

	rows, err := models.ListBillingHistoryBySubscription(db, sub.ID)
	if err != nil {
		log.Errorf("failed to load billing history for subscription %d: %v", sub.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
	})
}
