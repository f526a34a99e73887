package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig describes one rate-limit bucket.
type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	Message    string
}

var DefaultRateLimit = RateLimitConfig{
	Max:        100,
	Expiration: 15 * time.Minute,
	Message:    "too many requests, try again later",
}

// Booking endpoints get a tighter bucket so a single client cannot hammer
// the slot engine.
var BookingRateLimit = RateLimitConfig{
	Max:        30,
	Expiration: 15 * time.Minute,
	Message:    "too many booking requests, try again later",
}

var AuthRateLimit = RateLimitConfig{
	Max:        20,
	Expiration: 30 * time.Minute,
	Message:    "too many login attempts, try again later",
}

// CreateRateLimiter builds a limiter keyed by client IP.
func CreateRateLimiter(config RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.Max,
		Expiration: config.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       true,
				"message":     config.Message,
				"retry_after": int(config.Expiration.Seconds()),
			})
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}

func DefaultRateLimiter() fiber.Handler {
	return CreateRateLimiter(DefaultRateLimit)
}

func BookingRateLimiter() fiber.Handler {
	return CreateRateLimiter(BookingRateLimit)
}

func AuthRateLimiter() fiber.Handler {
	return CreateRateLimiter(AuthRateLimit)
}

// SecurityHeaders adds the standard hardening headers to every response.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}
