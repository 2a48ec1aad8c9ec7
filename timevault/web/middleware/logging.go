package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/logger"
)

func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.LogRequest(c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
		return err
	}
}
