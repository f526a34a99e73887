package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/models"
	"github.com/campusworks/guidance-backend/scheduling"
)

type requestAppointmentBody struct {
	SlotDate  string `json:"slot_date" validate:"required"`
	TimeLabel string `json:"time_label" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

type rejectBody struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// RequestAppointment books the caller into a slot. The appointment starts
// pending; capacity is enforced at approval time.
func RequestAppointment(c *fiber.Ctx) error {
	var body requestAppointmentBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, 400, CodeApptErr, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fail(c, 400, CodeApptErr, "validation failed: "+err.Error())
	}

	studentID := currentUserID(c)

	var firstName, lastName string
	var programSection *string
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT first_name, last_name, program_section FROM users WHERE id_user = $1",
		studentID).Scan(&firstName, &lastName, &programSection)
	if err != nil {
		return fail(c, 404, CodeApptErr, "student account not found")
	}

	req := scheduling.AppointmentRequest{
		StudentID:   studentID,
		StudentName: firstName + " " + lastName,
		Reason:      body.Reason,
		Date:        body.SlotDate,
		TimeLabel:   body.TimeLabel,
	}
	if programSection != nil {
		req.ProgramSection = *programSection
	}

	appt, err := engine.RequestAppointment(c.Context(), req)
	if err != nil {
		return failEngine(c, CodeApptErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "appointment requested",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_appointment": appt.ID,
			"slot":           appt.Key().String(),
		})
	return ok(c, 201, CodeApptOK, appt)
}

// ListMyAppointments returns the caller's appointments, newest first.
func ListMyAppointments(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	rows, err := database.GetDB().Query(context.Background(),
		`SELECT id_appointment, id_student, student_name, program_section, reason,
		        appointment_date, time_label, status, reject_reason, created_at, updated_at
		 FROM appointments WHERE id_student = $1 ORDER BY created_at DESC`, studentID)
	if err != nil {
		return fail(c, 500, CodeApptErr, "error fetching appointments")
	}
	defer rows.Close()

	appts, err := scanAppointments(rows)
	if err != nil {
		return fail(c, 500, CodeApptErr, "error reading appointments")
	}
	return ok(c, 200, CodeApptOK, appts)
}

// ListAppointments returns appointments for the staff view, optionally
// filtered by status and date.
func ListAppointments(c *fiber.Ctx) error {
	query := `SELECT id_appointment, id_student, student_name, program_section, reason,
	                 appointment_date, time_label, status, reject_reason, created_at, updated_at
	          FROM appointments WHERE 1=1`
	args := []interface{}{}

	if status := c.Query("status"); status != "" {
		args = append(args, status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if date := c.Query("date"); date != "" {
		args = append(args, date)
		query += " AND appointment_date = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY appointment_date, time_label, created_at"

	rows, err := database.GetDB().Query(context.Background(), query, args...)
	if err != nil {
		return fail(c, 500, CodeApptErr, "error fetching appointments")
	}
	defer rows.Close()

	appts, err := scanAppointments(rows)
	if err != nil {
		return fail(c, 500, CodeApptErr, "error reading appointments")
	}
	return ok(c, 200, CodeApptOK, appts)
}

// GetAppointment returns one appointment. Students can only see their own.
func GetAppointment(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeApptErr, "invalid appointment id")
	}

	appt, err := engine.GetAppointment(c.Context(), id)
	if err != nil {
		return failEngine(c, CodeApptErr, err)
	}

	if currentUserRole(c) == models.RoleStudent && appt.StudentID != currentUserID(c) {
		return fail(c, 403, CodeApptErr, "access denied")
	}
	return ok(c, 200, CodeApptOK, appt)
}

// ApproveAppointment approves a pending appointment. When the approval fills
// the slot, the remaining pending appointments on it are rejected
// automatically.
func ApproveAppointment(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeApptErr, "invalid appointment id")
	}

	appt, err := engine.Approve(c.Context(), id)
	if err != nil {
		return failEngine(c, CodeApptErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "appointment approved",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_appointment": appt.ID,
			"slot":           appt.Key().String(),
		})
	return ok(c, 200, CodeApptOK, appt)
}

// RejectAppointment rejects a pending appointment with a required reason.
func RejectAppointment(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeApptErr, "invalid appointment id")
	}

	var body rejectBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, 400, CodeApptErr, "invalid request body")
	}

	appt, err := engine.Reject(c.Context(), id, body.Reason)
	if err != nil {
		return failEngine(c, CodeApptErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelInfo, "appointment rejected",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_appointment": appt.ID,
		})
	return ok(c, 200, CodeApptOK, appt)
}

type apptRows interface {
	Next() bool
	Scan(dest ...interface{}) error
}

func scanAppointments(rows apptRows) ([]scheduling.Appointment, error) {
	appts := []scheduling.Appointment{}
	for rows.Next() {
		var a scheduling.Appointment
		var programSection *string
		if err := rows.Scan(&a.ID, &a.StudentID, &a.StudentName, &programSection, &a.Reason,
			&a.Date, &a.TimeLabel, &a.Status, &a.RejectReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if programSection != nil {
			a.ProgramSection = *programSection
		}
		appts = append(appts, a)
	}
	return appts, nil
}
