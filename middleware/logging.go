package middleware

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/models"
)

var logLogger = zap.NewNop()

// SetLogger installs the application logger used when a log row cannot be
// persisted.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logLogger = l
	}
}

// ActivityLogMiddleware records every request to the activity_logs table.
// Persistence runs on a separate goroutine so it never adds latency to the
// response.
func ActivityLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		responseTime := int(time.Since(start).Milliseconds())
		entry := buildLogEntry(c, responseTime)
		go persistLog(entry)

		return err
	}
}

func buildLogEntry(c *fiber.Ctx, responseTime int) models.CreateLogRequest {
	var email, role *string
	if v, ok := c.Locals("user_email").(string); ok && v != "" {
		email = &v
	}
	if v, ok := c.Locals("user_role").(string); ok && v != "" {
		role = &v
	}

	ip := c.IP()
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	var userAgent *string
	if ua := c.Get("User-Agent"); ua != "" {
		userAgent = &ua
	}

	var body *string
	switch c.Method() {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		if raw := string(c.Body()); raw != "" {
			filtered := filterSensitiveData(raw)
			body = &filtered
		}
	}

	var params *string
	if all := c.AllParams(); len(all) > 0 {
		if encoded, err := json.Marshal(all); err == nil {
			s := string(encoded)
			params = &s
		}
	}

	var query *string
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		query = &qs
	}

	level := levelForStatus(c.Response().StatusCode())
	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = models.EnvironmentDevelopment
	}

	return models.CreateLogRequest{
		Method:       c.Method(),
		Path:         c.Path(),
		StatusCode:   c.Response().StatusCode(),
		ResponseTime: &responseTime,
		UserAgent:    userAgent,
		IP:           ip,
		Body:         body,
		Params:       params,
		Query:        query,
		Email:        email,
		Role:         role,
		LogLevel:     &level,
		Environment:  &environment,
	}
}

// filterSensitiveData blanks credential fields before the body is stored.
func filterSensitiveData(body string) string {
	sensitiveFields := []string{"password", "mfa_code", "secret", "token", "refresh_token", "backup_codes"}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		if len(body) > 1000 {
			return body[:1000] + "...[truncated]"
		}
		return body
	}

	for _, field := range sensitiveFields {
		if _, exists := data[field]; exists {
			data[field] = "[FILTERED]"
		}
	}

	filtered, err := json.Marshal(data)
	if err != nil {
		return "[unserializable]"
	}
	if len(filtered) > 1000 {
		return string(filtered[:1000]) + "...[truncated]"
	}
	return string(filtered)
}

func levelForStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return models.LogLevelSuccess
	case statusCode >= 400 && statusCode < 500:
		return models.LogLevelWarning
	case statusCode >= 500:
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

func persistLog(entry models.CreateLogRequest) {
	db := database.GetDB()
	if db == nil {
		return
	}

	query := `
		INSERT INTO activity_logs (
			method, path, status_code, response_time, user_agent, ip,
			body, params, query, email, role, log_level, environment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := db.Exec(context.Background(), query,
		entry.Method,
		entry.Path,
		entry.StatusCode,
		entry.ResponseTime,
		entry.UserAgent,
		entry.IP,
		entry.Body,
		entry.Params,
		entry.Query,
		entry.Email,
		entry.Role,
		entry.LogLevel,
		entry.Environment,
		time.Now(),
	)
	if err != nil {
		logLogger.Warn("persist activity log", zap.Error(err))
	}
}

// LogCustomEvent records a domain event (approval, rejection, pass issuance)
// outside the request cycle.
func LogCustomEvent(level, message, userEmail, userRole string, extra map[string]interface{}) {
	entry := models.CreateLogRequest{
		Method:     "EVENT",
		Path:       "/event",
		StatusCode: 200,
		IP:         "127.0.0.1",
		LogLevel:   &level,
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = models.EnvironmentDevelopment
	}
	entry.Environment = &environment

	if userEmail != "" {
		entry.Email = &userEmail
	}
	if userRole != "" {
		entry.Role = &userRole
	}

	if extra != nil {
		extra["message"] = message
		if encoded, err := json.Marshal(extra); err == nil {
			s := string(encoded)
			entry.Body = &s
		}
	} else {
		entry.Body = &message
	}

	go persistLog(entry)
}
