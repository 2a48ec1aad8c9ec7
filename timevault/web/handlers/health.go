package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/web/utils"
)

var startTime = time.Now()

func (h *Handler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.Ping(c.Context()); err != nil {
			dbStatus = "unreachable"
		}
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	return utils.SendSuccess(c, status, fiber.Map{
		"status":   "ok",
		"database": dbStatus,
		"uptime":   time.Since(startTime).String(),
	}, "")
}
