package routes

import (
	"github.com/gofiber/fiber/v2"

	"SafeHold/internal/handlers"
	"SafeHold/internal/middleware"
)

func SetupNotificationRoutes(app *fiber.App, h *handlers.NotificationHandler, jwtSecret string) {
	notifications := app.Group("/api/notifications", middleware.Protected(jwtSecret))

	notifications.Get("/", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkAsRead)
}
