package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vulndash/vulndash-backend/broadcast"
	"github.com/vulndash/vulndash-backend/restapi"
)

// NewFiberApp creates and configures a Fiber app with REST and GraphQL
// routes, and hangs the broadcast jobs off the scheduler.
func NewFiberApp(sched *broadcast.Scheduler, pub broadcast.Publisher, deps restapi.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "vulndash-backend API v1.0",
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://localhost:4000,http://127.0.0.1:3000,http://127.0.0.1:4000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowMethods: "GET, POST, HEAD, OPTIONS",
	}))
	app.Use(logger.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, sched, pub, deps)

	return app
}
