package routes

import (
	"davietech/controller"
	"davietech/middleware"

	"github.com/gofiber/fiber/v2"
)

type Controllers struct {
	Payments *controller.PaymentController
	Orders   *controller.OrderController
	Offers   *controller.OfferController
	Events   *controller.EventController
	Search   *controller.SearchController
}

func RegisterRoutes(app *fiber.App, ctl Controllers, authMiddleware fiber.Handler) {
	api := app.Group("/api")

	// =========================
	// STOREFRONT
	// =========================
	api.Post("/orders", ctl.Orders.Checkout)
	api.Get("/orders/:id", ctl.Orders.Get)
	api.Get("/events", ctl.Events.Stream)
	api.Get("/search", ctl.Search.Search)

	// =========================
	// M-PESA
	// =========================
	mp := api.Group("/payments/mpesa")
	mp.Post("/stk", ctl.Payments.Initiate)
	mp.Post("/callback", ctl.Payments.STKCallback)
	mp.Post("/c2b/validation", ctl.Payments.C2BValidation)
	mp.Post("/c2b/confirmation", ctl.Payments.C2BConfirmation)

	// =========================
	// ADMIN
	// =========================
	admin := api.Group("/admin", authMiddleware, middleware.RoleRequired(middleware.RoleAdmin))
	admin.Get("/orders", ctl.Orders.List)
	admin.Patch("/orders/:id/status", ctl.Orders.UpdateStatus)
	admin.Post("/offers/:id/apply", ctl.Offers.Apply)
	admin.Post("/offers/:id/remove", ctl.Offers.Remove)
	admin.Get("/payments/mpesa/status/:transactionId", ctl.Payments.TransactionStatus)
	admin.Get("/payments/mpesa/stk/:checkoutRequestId", ctl.Payments.STKQuery)
}
