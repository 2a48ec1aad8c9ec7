package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/scan"
	"github.com/timevault/timevault/timevault/vault/claim"
	webmodels "github.com/timevault/timevault/timevault/web/models"
	"github.com/timevault/timevault/timevault/web/utils"
)

// Claim handles POST /api/v1/claims. The body carries the raw scan
// payload; outcome statuses map onto HTTP codes but the status tag in the
// body is authoritative for clients.
func (h *Handler) Claim(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	var req webmodels.ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	ident, ok := scan.ParsePayload(req.Payload)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "unrecognized claim payload")
	}

	var (
		result claim.Result
		err    error
	)
	switch ident.Kind {
	case scan.KindToken:
		result, err = h.claims.ClaimByToken(c.Context(), ident.Value, account.ID)
	default:
		result, err = h.claims.ClaimByCode(c.Context(), ident.Value, account.ID)
	}
	if err != nil {
		logger.LogError("claim failed", err)
	}

	return c.Status(claimHTTPStatus(result.Status)).JSON(
		webmodels.NewSuccessResponse(claimBody(result, h), result.Message))
}

// Release handles POST /api/v1/cards/:id/release.
func (h *Handler) Release(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	cardID, err := c.ParamsInt("id")
	if err != nil || cardID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid card id")
	}

	result, err := h.claims.Release(c.Context(), int64(cardID), account.ID)
	if err != nil {
		logger.LogError("release failed", err)
	}

	return c.Status(releaseHTTPStatus(result.Status)).JSON(
		webmodels.NewSuccessResponse(fiber.Map{"status": result.Status}, result.Message))
}

func claimBody(result claim.Result, h *Handler) *webmodels.ClaimResponse {
	body := &webmodels.ClaimResponse{
		Status:  string(result.Status),
		Message: result.Message,
	}
	if result.Card != nil {
		body.Card = models.NewCardSummary(result.Card, h.imageURL(result.Card.ImagePath))
	}
	return body
}

func claimHTTPStatus(status claim.Status) int {
	switch status {
	case claim.StatusClaimed, claim.StatusAlreadyOwner:
		return fiber.StatusOK
	case claim.StatusOwnedByOther:
		return fiber.StatusConflict
	case claim.StatusNotFound:
		return fiber.StatusNotFound
	case claim.StatusBlocked:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func releaseHTTPStatus(status claim.ReleaseStatus) int {
	switch status {
	case claim.ReleaseOK:
		return fiber.StatusOK
	case claim.ReleaseUnauthorized:
		return fiber.StatusForbidden
	case claim.ReleasePendingLock:
		return fiber.StatusConflict
	case claim.ReleaseNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
