package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/models"
)

// ListActivityLogs returns activity logs for admins, filtered by level,
// method or email, newest first with limit/offset paging.
func ListActivityLogs(c *fiber.Ctx) error {
	query := `SELECT id_log, method, path, status_code, response_time, user_agent, ip,
	                 body, params, query, email, role, log_level, environment, created_at
	          FROM activity_logs WHERE 1=1`
	args := []interface{}{}

	if level := c.Query("level"); level != "" {
		args = append(args, level)
		query += " AND log_level = $" + strconv.Itoa(len(args))
	}
	if method := c.Query("method"); method != "" {
		args = append(args, method)
		query += " AND method = $" + strconv.Itoa(len(args))
	}
	if email := c.Query("email"); email != "" {
		args = append(args, email)
		query += " AND email = $" + strconv.Itoa(len(args))
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := database.GetDB().Query(context.Background(), query, args...)
	if err != nil {
		return fail(c, 500, CodeLogErr, "error fetching logs")
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var entry models.ActivityLog
		if err := rows.Scan(&entry.IDLog, &entry.Method, &entry.Path, &entry.StatusCode,
			&entry.ResponseTime, &entry.UserAgent, &entry.IP, &entry.Body, &entry.Params,
			&entry.Query, &entry.Email, &entry.Role, &entry.LogLevel, &entry.Environment,
			&entry.CreatedAt); err != nil {
			return fail(c, 500, CodeLogErr, "error reading logs")
		}
		logs = append(logs, entry)
	}
	return ok(c, 200, CodeLogOK, logs)
}

// ActivityLogStats returns log counts grouped by level for the admin
// dashboard.
func ActivityLogStats(c *fiber.Ctx) error {
	rows, err := database.GetDB().Query(context.Background(),
		"SELECT log_level, COUNT(*) FROM activity_logs GROUP BY log_level")
	if err != nil {
		return fail(c, 500, CodeLogErr, "error fetching log stats")
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return fail(c, 500, CodeLogErr, "error reading log stats")
		}
		stats[level] = count
	}
	return ok(c, 200, CodeLogOK, stats)
}
