package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/models"
)

// ListUsers returns accounts for the admin panel, optionally filtered by role.
func ListUsers(c *fiber.Ctx) error {
	query := `SELECT id_user, first_name, last_name, email, role, program_section, mfa_enabled, created_at
	          FROM users`
	args := []interface{}{}
	if role := c.Query("role"); role != "" {
		args = append(args, role)
		query += " WHERE role = $1"
	}
	query += " ORDER BY last_name, first_name"

	rows, err := database.GetDB().Query(context.Background(), query, args...)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error fetching users")
	}
	defer rows.Close()

	users := []models.UserResponse{}
	for rows.Next() {
		var user models.UserResponse
		var programSection *string
		if err := rows.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email,
			&user.Role, &programSection, &user.MFAEnabled, &user.CreatedAt); err != nil {
			return fail(c, 500, CodeAuthErr, "error reading users")
		}
		if programSection != nil {
			user.ProgramSection = *programSection
		}
		users = append(users, user)
	}
	return ok(c, 200, CodeAuthOK, users)
}

// GetUserByID returns one account.
func GetUserByID(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeAuthErr, "invalid user id")
	}

	var user models.UserResponse
	var programSection *string
	err = database.GetDB().QueryRow(context.Background(),
		`SELECT id_user, first_name, last_name, email, role, program_section, mfa_enabled, created_at
		 FROM users WHERE id_user = $1`, id,
	).Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Role,
		&programSection, &user.MFAEnabled, &user.CreatedAt)
	if err != nil {
		return fail(c, 404, CodeAuthErr, "user not found")
	}
	if programSection != nil {
		user.ProgramSection = *programSection
	}
	return ok(c, 200, CodeAuthOK, user)
}
