package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/marcwilhelm/SalonOwl/app/repository"
)

// HandleListPlans returns all plans currently offered, cheapest first.
func HandleListPlans(c *fiber.Ctx) error {
	plans, err := repository.GetGlobalFactory().GetPlanRepository().ListActive()
	if err != nil {
		log.Errorf("failed to list plans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    plans,
	})
}
