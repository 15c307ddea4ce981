package middleware

import (
	"time"

	"github.com/fileharbor/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Info("http_request", map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
		})
		return err
	}
}

// SecurityLogger flags auth-relevant responses so failed logins and denied
// requests stand out in the stream.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		switch status {
		case fiber.StatusUnauthorized, fiber.StatusForbidden, fiber.StatusLocked:
			logger.Warn("security_denied", map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"status": status,
				"ip":     c.IP(),
			})
		}
		return err
	}
}
