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

// passRecord joins a pass with the appointment it closes out.
type passRecord struct {
	scheduling.GuidancePass
	StudentName     string `json:"student_name"`
	AppointmentDate string `json:"appointment_date"`
	TimeLabel       string `json:"time_label"`
}

// IssuePass completes an approved appointment and issues its guidance pass.
// The pass serial is the student's proof that the session took place.
func IssuePass(c *fiber.Ctx) error {
	appointmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodePassErr, "invalid appointment id")
	}

	pass, err := engine.CompleteWithPass(c.Context(), appointmentID, currentUserID(c))
	if err != nil {
		return failEngine(c, CodePassErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "guidance pass issued",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_pass":        pass.ID,
			"id_appointment": pass.AppointmentID,
			"serial":         pass.Serial,
		})
	return ok(c, 201, CodePassOK, pass)
}

// ListPasses returns issued passes, newest first.
func ListPasses(c *fiber.Ctx) error {
	rows, err := database.GetDB().Query(context.Background(),
		`SELECT p.id_pass, p.id_appointment, p.serial, p.issued_by, p.issued_at,
		        a.student_name, a.appointment_date, a.time_label
		 FROM guidance_passes p
		 JOIN appointments a ON a.id_appointment = p.id_appointment
		 ORDER BY p.issued_at DESC`)
	if err != nil {
		return fail(c, 500, CodePassErr, "error fetching passes")
	}
	defer rows.Close()

	passes := []passRecord{}
	for rows.Next() {
		var p passRecord
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.Serial, &p.IssuedBy, &p.IssuedAt,
			&p.StudentName, &p.AppointmentDate, &p.TimeLabel); err != nil {
			return fail(c, 500, CodePassErr, "error reading passes")
		}
		passes = append(passes, p)
	}
	return ok(c, 200, CodePassOK, passes)
}

// VerifyPass looks a pass up by serial so teachers can confirm a student's
// excuse slip.
func VerifyPass(c *fiber.Ctx) error {
	serial := c.Params("serial")
	if serial == "" {
		return fail(c, 400, CodePassErr, "serial is required")
	}

	var p passRecord
	err := database.GetDB().QueryRow(context.Background(),
		`SELECT p.id_pass, p.id_appointment, p.serial, p.issued_by, p.issued_at,
		        a.student_name, a.appointment_date, a.time_label
		 FROM guidance_passes p
		 JOIN appointments a ON a.id_appointment = p.id_appointment
		 WHERE p.serial = $1`, serial,
	).Scan(&p.ID, &p.AppointmentID, &p.Serial, &p.IssuedBy, &p.IssuedAt,
		&p.StudentName, &p.AppointmentDate, &p.TimeLabel)
	if err != nil {
		return fail(c, 404, CodePassErr, "pass not found")
	}
	return ok(c, 200, CodePassOK, p)
}
