package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/marcwilhelm/SalonOwl/app/controllers"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "SalonOwl API",
		})
	})

	v1 := api.Group("/v1")

	// Public plan catalog
	v1.Get("/plans", controllers.HandleListPlans)

	// Gateway webhook, authenticated by signature verification only
	v1.Post("/webhooks/payment", controllers.HandlePaymentWebhook)

	// Billing routes require an authenticated salon owner
	billing := v1.Group("/billing", middleware.APIKeyAuthMiddleware(), middleware.RequireSalonOwner)
	billing.Post("/subscribe", controllers.HandleCreateSubscriptionIntent)
	billing.Post("/upgrade", controllers.HandleCreateUpgradeIntent)
	billing.Post("/downgrade", controllers.HandleCreateDowngradeIntent)
	billing.Post("/payments/:id/cancel", controllers.HandleCancelPendingPayment)
	billing.Post("/payments/:id/refund", controllers.HandleRefundPayment)
	billing.Get("/subscription", controllers.HandleGetMySubscription)
	billing.Get("/history", controllers.HandleGetBillingHistory)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
