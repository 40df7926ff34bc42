package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"manifesthub/internal/models"
	"manifesthub/internal/server/handlers"
	"manifesthub/internal/server/middleware"
	"manifesthub/internal/services"
)

func RegisterRoutes(app *fiber.App, hub *services.Hub) {
	// Auth
	auth := app.Group("/api/auth")
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)
	auth.Get("/profile", middleware.AuthRequired(), handlers.Profile)
	auth.Put("/profile/username", middleware.AuthRequired(), handlers.UpdateUsername)
	auth.Put("/profile/password", middleware.AuthRequired(), handlers.UpdatePassword)
	auth.Put("/profile/picture", middleware.AuthRequired(), handlers.UpdateProfilePicture)

	// Manifests; reads are public, writes need an admin
	admin := middleware.AuthRequired(models.RoleAdmin)
	api := app.Group("/api")
	api.Get("/manifests", handlers.ManifestList)
	api.Get("/manifests/stats", handlers.ManifestStats)
	api.Post("/manifests/upload", admin, handlers.ManifestUpload)
	api.Get("/manifests/:id", handlers.ManifestGet)
	api.Get("/manifests/:id/files", handlers.ManifestFiles)
	api.Get("/manifests/:id/download", handlers.ManifestDownload)
	api.Put("/manifests/:id", admin, handlers.ManifestUpdate)
	api.Delete("/manifests/:id", admin, handlers.ManifestDelete(hub))

	// Change notifications
	app.Use("/ws", handlers.WebSocketUpgrade)
	app.Get("/ws", handlers.WebSocket(hub))

	// Health
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now()})
	})
}
