package utils

import (
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// Fail renders a service error through the standard envelope, attaching the
// machine-readable code and details when present.
func Fail(c *fiber.Ctx, err error) error {
	appErr := apperr.From(err)
	body := fiber.Map{
		"success": false,
		"error":   appErr.Message,
	}
	if appErr.Code != "" {
		body["code"] = appErr.Code
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return c.Status(appErr.Status).JSON(body)
}

func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}
