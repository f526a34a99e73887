package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/scheduling"
)

type BodyResponse struct {
	IntCode string        `json:"intCode"`
	Data    []interface{} `json:"data"`
}

type StandardResponse struct {
	StatusCode int          `json:"statusCode"`
	Body       BodyResponse `json:"body"`
}

// Internal codes per feature area, success/failure pairs.
const (
	CodeAuthOK  = "S10"
	CodeAuthErr = "F10"

	CodeSlotOK  = "S20"
	CodeSlotErr = "F20"

	CodeApptOK  = "S30"
	CodeApptErr = "F30"

	CodePassOK  = "S40"
	CodePassErr = "F40"

	CodeIntakeOK  = "S50"
	CodeIntakeErr = "F50"

	CodeMoodOK  = "S60"
	CodeMoodErr = "F60"

	CodeReportOK  = "S70"
	CodeReportErr = "F70"

	CodeLogOK  = "S80"
	CodeLogErr = "F80"
)

var validate = validator.New()

func ok(c *fiber.Ctx, status int, intCode string, data ...interface{}) error {
	return c.Status(status).JSON(StandardResponse{
		StatusCode: status,
		Body: BodyResponse{
			IntCode: intCode,
			Data:    data,
		},
	})
}

func fail(c *fiber.Ctx, status int, intCode, message string) error {
	return c.Status(status).JSON(StandardResponse{
		StatusCode: status,
		Body: BodyResponse{
			IntCode: intCode,
			Data:    []interface{}{fiber.Map{"error": message}},
		},
	})
}

// statusForError maps engine errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		return 400
	case errors.Is(err, scheduling.ErrNotFound):
		return 404
	case errors.Is(err, scheduling.ErrConflict),
		errors.Is(err, scheduling.ErrSlotUnavailable),
		errors.Is(err, scheduling.ErrSlotFull),
		errors.Is(err, scheduling.ErrInvalidTransition):
		return 409
	default:
		return 500
	}
}

// failEngine reports an engine error with its mapped status.
func failEngine(c *fiber.Ctx, intCode string, err error) error {
	status := statusForError(err)
	message := err.Error()
	if status == 500 {
		message = "internal server error"
	}
	return fail(c, status, intCode, message)
}

func currentUserEmail(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_email").(string); ok {
		return v
	}
	return ""
}

func currentUserRole(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_role").(string); ok {
		return v
	}
	return ""
}

func currentUserID(c *fiber.Ctx) int {
	if v, ok := c.Locals("user_id").(int); ok {
		return v
	}
	return 0
}
