package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/logger"
	webmodels "github.com/timevault/timevault/timevault/web/models"
	"github.com/timevault/timevault/timevault/web/utils"
)

// CreateTicket handles POST /api/v1/tickets: disputes over claimed or
// credited cards go through support, never through automatic reversal.
func (h *Handler) CreateTicket(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	var req webmodels.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "subject and body are required")
	}

	ticket := &models.SupportTicket{
		AccountID: account.ID,
		Subject:   req.Subject,
		Body:      req.Body,
	}
	if err := h.tickets.Create(c.Context(), ticket); err != nil {
		logger.LogError("ticket create failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to create ticket")
	}

	return utils.SendSuccess(c, fiber.StatusCreated, ticket, "Ticket created.")
}

// MyTickets handles GET /api/v1/tickets.
func (h *Handler) MyTickets(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	tickets, err := h.tickets.GetByAccount(c.Context(), account.ID)
	if err != nil {
		logger.LogError("ticket list failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load tickets")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"tickets": tickets,
		"count":   len(tickets),
	}, "")
}
