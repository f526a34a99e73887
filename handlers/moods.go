package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/models"
)

// SubmitMoodEntry records the caller's daily check-in. One entry per day.
func SubmitMoodEntry(c *fiber.Ctx) error {
	studentID := currentUserID(c)

	var req models.MoodEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeMoodErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeMoodErr, "validation failed: "+err.Error())
	}

	// The one-entry-per-day window follows the campus clock, not server time.
	today := engine.Today()

	var exists bool
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM mood_entries WHERE id_student = $1 AND entry_date = $2)",
		studentID, today).Scan(&exists)
	if err != nil {
		return fail(c, 500, CodeMoodErr, "error checking today's entry")
	}
	if exists {
		return fail(c, 409, CodeMoodErr, "you already checked in today")
	}

	var entry models.MoodEntry
	err = database.GetDB().QueryRow(context.Background(),
		`INSERT INTO mood_entries (id_student, mood, note, entry_date, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id_entry, id_student, mood, note, entry_date, created_at`,
		studentID, req.Mood, req.Note, today,
	).Scan(&entry.IDEntry, &entry.IDStudent, &entry.Mood, &entry.Note, &entry.EntryDate, &entry.CreatedAt)
	if err != nil {
		return fail(c, 500, CodeMoodErr, "error saving mood entry")
	}

	return ok(c, 201, CodeMoodOK, entry)
}

// ListMyMoods returns the caller's check-in history, newest first.
func ListMyMoods(c *fiber.Ctx) error {
	return listMoods(c, currentUserID(c))
}

// ListMoodsByStudent returns a student's check-in history for counselors.
func ListMoodsByStudent(c *fiber.Ctx) error {
	studentID, err := strconv.Atoi(c.Params("student_id"))
	if err != nil {
		return fail(c, 400, CodeMoodErr, "invalid student id")
	}
	return listMoods(c, studentID)
}

func listMoods(c *fiber.Ctx, studentID int) error {
	rows, err := database.GetDB().Query(context.Background(),
		`SELECT id_entry, id_student, mood, note, entry_date, created_at
		 FROM mood_entries WHERE id_student = $1
		 ORDER BY entry_date DESC LIMIT 90`, studentID)
	if err != nil {
		return fail(c, 500, CodeMoodErr, "error fetching mood entries")
	}
	defer rows.Close()

	entries := []models.MoodEntry{}
	for rows.Next() {
		var entry models.MoodEntry
		if err := rows.Scan(&entry.IDEntry, &entry.IDStudent, &entry.Mood, &entry.Note,
			&entry.EntryDate, &entry.CreatedAt); err != nil {
			return fail(c, 500, CodeMoodErr, "error reading mood entries")
		}
		entries = append(entries, entry)
	}
	return ok(c, 200, CodeMoodOK, entries)
}
