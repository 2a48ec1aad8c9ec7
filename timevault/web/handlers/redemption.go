package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/vault/redemption"
	webmodels "github.com/timevault/timevault/timevault/web/models"
	"github.com/timevault/timevault/timevault/web/utils"
)

// SubmitRedemption handles POST /api/v1/redemptions. The submission is
// all-or-nothing; a refusal names the first ineligible card.
func (h *Handler) SubmitRedemption(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	var req webmodels.SubmitRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	result, err := h.receipts.Submit(c.Context(), req.CardIDs, account.ID)
	if err != nil {
		logger.LogError("redemption submit failed", err)
	}

	body := fiber.Map{"status": result.Status}
	if result.Redemption != nil {
		body["redemption"] = result.Redemption
	}
	if result.Refusal != nil {
		body["refusal"] = result.Refusal
	}

	return c.Status(submitHTTPStatus(result.Status)).JSON(
		webmodels.NewSuccessResponse(body, result.Message))
}

// MyRedemptions handles GET /api/v1/redemptions.
func (h *Handler) MyRedemptions(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	receipts, err := h.redemptions.GetByAccount(c.Context(), account.ID)
	if err != nil {
		logger.LogError("redemption list failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load redemptions")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"redemptions": receipts,
		"count":       len(receipts),
	}, "")
}

func submitHTTPStatus(status redemption.SubmitStatus) int {
	switch status {
	case redemption.SubmitOK:
		return fiber.StatusCreated
	case redemption.SubmitRefused:
		return fiber.StatusConflict
	case redemption.SubmitBlocked:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
