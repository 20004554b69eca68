package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ParseBody decodes the JSON body into dst. On failure it writes a 400
// response and reports false; the handler must return nil immediately.
func ParseBody(c *fiber.Ctx, dst any) bool {
	if err := c.BodyParser(dst); err != nil {
		slog.Error(err.Error())
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
		return false
	}
	return true
}
