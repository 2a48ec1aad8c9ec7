package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/web/models"
)

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

// CustomErrorHandler converts unhandled errors into the standard envelope.
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		logger.LogError("unhandled request error", err)
	}

	return c.Status(code).JSON(models.NewErrorResponse("REQUEST_FAILED", message, nil))
}
