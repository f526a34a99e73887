package main

import (
	"context"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/handlers"
	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/routes"
	"github.com/campusworks/guidance-backend/scheduling"
)

func main() {
	logger := buildLogger()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment")
	}

	ctx := context.Background()
	if err := database.ConnectDB(ctx); err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer database.CloseDB()
	logger.Info("database connected")

	if err := database.Migrate(database.GetDB()); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	// The office clock runs at a fixed UTC offset so slot expiry follows the
	// campus wall clock no matter where the server is deployed.
	offset := 8
	if v, err := strconv.Atoi(os.Getenv("TIMEZONE_OFFSET")); err == nil {
		offset = v
	}
	clock := scheduling.NewFixedClock(offset)

	store := scheduling.NewPGStore(database.GetDB())
	engine := scheduling.NewEngine(store, clock, logger)
	handlers.SetEngine(engine)
	middleware.SetLogger(logger)

	app := fiber.New(fiber.Config{
		AppName: "Guidance Office API v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	routes.SetupRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error":  "route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	logger.Info("server starting", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("ENVIRONMENT") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
