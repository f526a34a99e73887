package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/models"
)

const intakeColumns = `id_form, id_student, nickname, birthdate, address, contact_number,
	guardian_name, guardian_contact, concerns, created_at, updated_at`

// SubmitIntakeForm creates or updates the caller's intake form. Each student
// keeps exactly one form on file.
func SubmitIntakeForm(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	var req models.IntakeFormRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeIntakeErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeIntakeErr, "validation failed: "+err.Error())
	}

	var form models.IntakeForm
	err := database.GetDB().QueryRow(context.Background(),
		`INSERT INTO intake_forms (id_student, nickname, birthdate, address, contact_number,
		                           guardian_name, guardian_contact, concerns, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 ON CONFLICT (id_student) DO UPDATE SET
		   nickname = EXCLUDED.nickname,
		   birthdate = EXCLUDED.birthdate,
		   address = EXCLUDED.address,
		   contact_number = EXCLUDED.contact_number,
		   guardian_name = EXCLUDED.guardian_name,
		   guardian_contact = EXCLUDED.guardian_contact,
		   concerns = EXCLUDED.concerns,
		   updated_at = NOW()
		 RETURNING `+intakeColumns,
		studentID, req.Nickname, req.Birthdate, req.Address, req.ContactNumber,
		req.GuardianName, req.GuardianContact, req.Concerns,
	).Scan(&form.IDForm, &form.IDStudent, &form.Nickname, &form.Birthdate, &form.Address,
		&form.ContactNumber, &form.GuardianName, &form.GuardianContact, &form.Concerns,
		&form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return fail(c, 500, CodeIntakeErr, "error saving intake form")
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "intake form submitted",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{"id_form": form.IDForm})
	return ok(c, 200, CodeIntakeOK, form)
}

// GetMyIntakeForm returns the caller's own form.
func GetMyIntakeForm(c *fiber.Ctx) error {
	return getIntakeForm(c, currentUserID(c))
}

// GetIntakeFormByStudent returns a student's form for counselors.
func GetIntakeFormByStudent(c *fiber.Ctx) error {
	studentID, err := strconv.Atoi(c.Params("student_id"))
	if err != nil {
		return fail(c, 400, CodeIntakeErr, "invalid student id")
	}
	return getIntakeForm(c, studentID)
}

func getIntakeForm(c *fiber.Ctx, studentID int) error {
	var form models.IntakeForm
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT "+intakeColumns+" FROM intake_forms WHERE id_student = $1", studentID,
	).Scan(&form.IDForm, &form.IDStudent, &form.Nickname, &form.Birthdate, &form.Address,
		&form.ContactNumber, &form.GuardianName, &form.GuardianContact, &form.Concerns,
		&form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return fail(c, 404, CodeIntakeErr, "intake form not found")
	}
	return ok(c, 200, CodeIntakeOK, form)
}

// ListIntakeForms returns every form on file for the counselor roster view.
func ListIntakeForms(c *fiber.Ctx) error {
	rows, err := database.GetDB().Query(context.Background(),
		"SELECT "+intakeColumns+" FROM intake_forms ORDER BY updated_at DESC")
	if err != nil {
		return fail(c, 500, CodeIntakeErr, "error fetching intake forms")
	}
	defer rows.Close()

	forms := []models.IntakeForm{}
	for rows.Next() {
		var form models.IntakeForm
		if err := rows.Scan(&form.IDForm, &form.IDStudent, &form.Nickname, &form.Birthdate,
			&form.Address, &form.ContactNumber, &form.GuardianName, &form.GuardianContact,
			&form.Concerns, &form.CreatedAt, &form.UpdatedAt); err != nil {
			return fail(c, 500, CodeIntakeErr, "error reading intake forms")
		}
		forms = append(forms, form)
	}
	return ok(c, 200, CodeIntakeOK, forms)
}
