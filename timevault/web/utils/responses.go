package utils

import (
	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/web/models"
)

func SendSuccess(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(models.NewSuccessResponse(data, message))
}

func SendError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.NewErrorResponse(code, message, nil))
}

func SendErrorDetails(c *fiber.Ctx, status int, code, message string, details map[string]string) error {
	return c.Status(status).JSON(models.NewErrorResponse(code, message, details))
}
