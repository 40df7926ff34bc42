package server

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"manifesthub/internal/config"
	"manifesthub/internal/services"
)

// New builds the fiber app with every API route registered.
func New(hub *services.Hub) *fiber.App {
	app := fiber.New(fiber.Config{
		ServerHeader: "ManifestHub",
		AppName:      "ManifestHub",
		BodyLimit:    config.Current.BodyLimit,
		ErrorHandler: ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Format: "${time} ${status} ${method} ${path} ${latency}\n"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	RegisterRoutes(app, hub)
	return app
}

// ErrorHandler renders every error in the API's JSON envelope. Errors that
// are not fiber errors are logged and reported as 500 without detail.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": fe.Message})
	}
	log.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Internal server error"})
}
