package routes

import (
	"github.com/gofiber/fiber/v2"

	"SafeHold/internal/handlers"
	"SafeHold/internal/middleware"
)

func SetupEscrowRoutes(app *fiber.App, h *handlers.EscrowHandler, jwtSecret string) {
	escrow := app.Group("/api/escrow/transactions", middleware.Protected(jwtSecret))

	// Open an escrow (provider chosen by risk unless overridden)
	escrow.Post("/:id", h.CreateEscrow)

	// Confirm the buyer's payment into the hold
	escrow.Post("/:id/confirm", h.ConfirmPayment)

	// Release funds to the seller
	escrow.Post("/:id/release", h.ReleaseFunds)

	// Refund the buyer
	escrow.Post("/:id/refund", h.RefundFunds)

	escrow.Get("/:id/status", h.GetStatus)
	escrow.Get("/:id/recommendation", h.GetRecommendation)
}
