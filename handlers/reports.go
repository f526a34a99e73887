package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/models"
)

// AppointmentsReport aggregates appointment volume by status and date,
// optionally bounded by from/to query parameters (YYYY-MM-DD).
func AppointmentsReport(c *fiber.Ctx) error {
	from := c.Query("from")
	to := c.Query("to")

	query := "SELECT appointment_date, status, COUNT(*) FROM appointments WHERE 1=1"
	args := []interface{}{}
	if from != "" {
		args = append(args, from)
		query += " AND appointment_date >= $" + strconv.Itoa(len(args))
	}
	if to != "" {
		args = append(args, to)
		query += " AND appointment_date <= $" + strconv.Itoa(len(args))
	}
	query += " GROUP BY appointment_date, status"

	rows, err := database.GetDB().Query(context.Background(), query, args...)
	if err != nil {
		return fail(c, 500, CodeReportErr, "error generating report")
	}
	defer rows.Close()

	report := models.AppointmentReport{
		ByStatus: map[string]int{},
		ByDate:   map[string]int{},
		FromDate: from,
		ToDate:   to,
	}
	for rows.Next() {
		var date, status string
		var count int
		if err := rows.Scan(&date, &status, &count); err != nil {
			return fail(c, 500, CodeReportErr, "error reading report rows")
		}
		report.Total += count
		report.ByStatus[status] += count
		report.ByDate[date] += count
	}
	return ok(c, 200, CodeReportOK, report)
}

// SlotUtilizationReport shows occupancy per slot, counts recomputed from
// appointment rows rather than the cached counter.
func SlotUtilizationReport(c *fiber.Ctx) error {
	rows, err := database.GetDB().Query(context.Background(),
		`SELECT s.slot_date, s.time_label, s.max_capacity, s.active,
		        COUNT(*) FILTER (WHERE a.status = 'approved') AS approved_count,
		        COUNT(*) FILTER (WHERE a.status = 'pending') AS pending_count
		 FROM time_slots s
		 LEFT JOIN appointments a
		   ON a.appointment_date = s.slot_date AND a.time_label = s.time_label
		 GROUP BY s.id_slot, s.slot_date, s.time_label, s.max_capacity, s.active
		 ORDER BY s.slot_date, s.time_label`)
	if err != nil {
		return fail(c, 500, CodeReportErr, "error generating report")
	}
	defer rows.Close()

	report := []models.SlotUtilizationRow{}
	for rows.Next() {
		var row models.SlotUtilizationRow
		if err := rows.Scan(&row.SlotDate, &row.TimeLabel, &row.MaxCapacity, &row.Active,
			&row.ApprovedCount, &row.PendingCount); err != nil {
			return fail(c, 500, CodeReportErr, "error reading report rows")
		}
		report = append(report, row)
	}
	return ok(c, 200, CodeReportOK, report)
}

// MoodsReport summarizes daily check-ins over a date range.
func MoodsReport(c *fiber.Ctx) error {
	from := c.Query("from")
	to := c.Query("to")

	query := "SELECT mood, COUNT(*) FROM mood_entries WHERE 1=1"
	args := []interface{}{}
	if from != "" {
		args = append(args, from)
		query += " AND entry_date >= $" + strconv.Itoa(len(args))
	}
	if to != "" {
		args = append(args, to)
		query += " AND entry_date <= $" + strconv.Itoa(len(args))
	}
	query += " GROUP BY mood"

	rows, err := database.GetDB().Query(context.Background(), query, args...)
	if err != nil {
		return fail(c, 500, CodeReportErr, "error generating report")
	}
	defer rows.Close()

	report := models.MoodReport{
		ByMood:   map[string]int{},
		FromDate: from,
		ToDate:   to,
	}
	for rows.Next() {
		var mood string
		var count int
		if err := rows.Scan(&mood, &count); err != nil {
			return fail(c, 500, CodeReportErr, "error reading report rows")
		}
		report.Total += count
		report.ByMood[mood] += count
	}
	return ok(c, 200, CodeReportOK, report)
}
