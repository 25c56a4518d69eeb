// handlers/location_routes.go
package handlers

import (
	"mission-reward-system/middleware"
	"mission-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLocationRoutes(app *fiber.App, locationService *services.LocationService) {
	// 🔐 Admin routes — staff only (locations carry geofence radii and QR secrets)
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	admin.Get("/locations", locationService.GetLocations)
	admin.Post("/locations", locationService.CreateLocation)
	admin.Patch("/locations/:id/active", locationService.SetLocationActive)
	admin.Get("/locations/:id/qr-token", locationService.IssueQRToken)
}
