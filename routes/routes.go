package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/campusworks/guidance-backend/handlers"
	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/models"
)

// SetupRoutes wires every endpoint, guard and limiter.
func SetupRoutes(app *fiber.App) {
	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.ActivityLogMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Guidance Office API",
			"version": "1.0.0",
		})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.DefaultRateLimiter())

	// Public auth endpoints.
	auth := api.Group("/auth")
	auth.Post("/register", middleware.AuthRateLimiter(), handlers.Register)
	auth.Post("/login", middleware.AuthRateLimiter(), handlers.Login)
	auth.Post("/refresh", handlers.RefreshAccessToken)
	auth.Post("/logout", middleware.JWTMiddleware(), handlers.Logout)

	protected := api.Group("/", middleware.JWTMiddleware())

	// Account endpoints.
	users := protected.Group("/users")
	users.Get("/profile", handlers.Profile)
	users.Post("/", middleware.RequireRole(models.RoleAdmin), handlers.Register)
	users.Get("/", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListUsers)
	users.Get("/:id", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.GetUserByID)

	mfa := protected.Group("/mfa")
	mfa.Post("/setup", handlers.SetupMFA)
	mfa.Post("/verify", handlers.VerifyMFA)
	mfa.Post("/disable", handlers.DisableMFA)

	// Slot management. Students only read; staff open, close and edit.
	slots := protected.Group("/slots")
	slots.Get("/", handlers.ListSlots)
	slots.Get("/all", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListSlotsAdmin)
	slots.Post("/", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.CreateSlot)
	slots.Post("/resync", middleware.RequireRole(models.RoleAdmin), handlers.ResyncSlotCounts)
	slots.Get("/:id", handlers.GetSlot)
	slots.Get("/:id/approved", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListSlotApproved)
	slots.Put("/:id", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.UpdateSlot)
	slots.Put("/:id/toggle", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ToggleSlot)
	slots.Delete("/:id", middleware.RequireRole(models.RoleAdmin), handlers.DeleteSlot)

	// Appointment booking and review.
	appointments := protected.Group("/appointments")
	appointments.Post("/", middleware.RequireRole(models.RoleStudent), middleware.BookingRateLimiter(), handlers.RequestAppointment)
	appointments.Get("/mine", middleware.RequireRole(models.RoleStudent), handlers.ListMyAppointments)
	appointments.Get("/", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListAppointments)
	appointments.Get("/:id", handlers.GetAppointment)
	appointments.Put("/:id/approve", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ApproveAppointment)
	appointments.Put("/:id/reject", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.RejectAppointment)
	appointments.Post("/:id/pass", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.IssuePass)

	// Guidance passes.
	passes := protected.Group("/passes")
	passes.Get("/", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListPasses)
	passes.Get("/verify/:serial", handlers.VerifyPass)

	// Intake forms.
	intake := protected.Group("/intake-forms")
	intake.Post("/", middleware.RequireRole(models.RoleStudent), handlers.SubmitIntakeForm)
	intake.Get("/mine", middleware.RequireRole(models.RoleStudent), handlers.GetMyIntakeForm)
	intake.Get("/", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListIntakeForms)
	intake.Get("/student/:student_id", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.GetIntakeFormByStudent)

	// Daily mood check-ins.
	moods := protected.Group("/moods")
	moods.Post("/", middleware.RequireRole(models.RoleStudent), handlers.SubmitMoodEntry)
	moods.Get("/mine", middleware.RequireRole(models.RoleStudent), handlers.ListMyMoods)
	moods.Get("/student/:student_id", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin), handlers.ListMoodsByStudent)

	// Reports.
	reports := protected.Group("/reports", middleware.RequireRole(models.RoleCounselor, models.RoleAdmin))
	reports.Get("/appointments", handlers.AppointmentsReport)
	reports.Get("/slots", handlers.SlotUtilizationReport)
	reports.Get("/moods", handlers.MoodsReport)

	// Activity logs, admin only.
	logs := protected.Group("/logs", middleware.RequireRole(models.RoleAdmin))
	logs.Get("/", handlers.ListActivityLogs)
	logs.Get("/stats", handlers.ActivityLogStats)
}
