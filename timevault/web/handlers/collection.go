package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/web/utils"
)

const defaultHistoryLimit = 50

// Collection handles GET /api/v1/collection: the caller's cards with
// image URLs and redemption status.
func (h *Handler) Collection(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	cards, err := h.cards.GetAllByOwner(c.Context(), account.ID)
	if err != nil {
		logger.LogError("collection lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load collection")
	}

	type ownedCard struct {
		*models.CardSummary
		RedemptionStatus models.RedemptionStatus `json:"redemption_status"`
	}

	out := make([]ownedCard, 0, len(cards))
	for _, card := range cards {
		out = append(out, ownedCard{
			CardSummary:      models.NewCardSummary(card, h.imageURL(card.ImagePath)),
			RedemptionStatus: card.RedemptionStatus,
		})
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"cards": out,
		"count": len(out),
	}, "")
}

// CardSummary handles GET /api/v1/cards/:id, the cached display read.
func (h *Handler) CardSummary(c *fiber.Ctx) error {
	cardID, err := c.ParamsInt("id")
	if err != nil || cardID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid card id")
	}

	card, err := h.cards.SummaryByID(c.Context(), int64(cardID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "card not found")
		}
		logger.LogError("card lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load card")
	}
	if card.DeletedAt != nil {
		return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "card not found")
	}

	return utils.SendSuccess(c, fiber.StatusOK, models.NewCardSummary(card, h.imageURL(card.ImagePath)), "")
}

// MyActivity handles GET /api/v1/activity: the caller's recent claim and
// redemption events, newest first.
func (h *Handler) MyActivity(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	entries, err := h.activity.AccountHistory(c.Context(), account.ID, defaultHistoryLimit)
	if err != nil {
		logger.LogError("activity lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load activity")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"activity": entries,
		"count":    len(entries),
	}, "")
}

// CardHistory handles GET /api/v1/cards/:id/history. Visible to the
// current owner and to admins.
func (h *Handler) CardHistory(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	cardID, err := c.ParamsInt("id")
	if err != nil || cardID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid card id")
	}

	card, err := h.cards.GetByID(c.Context(), int64(cardID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "card not found")
		}
		logger.LogError("card lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load card")
	}

	if !account.IsAdmin && !card.OwnedBy(account.ID) {
		return utils.SendError(c, fiber.StatusForbidden, "FORBIDDEN", "only the owner may view this card's history")
	}

	entries, err := h.activity.History(c.Context(), card.ID, defaultHistoryLimit)
	if err != nil {
		logger.LogError("history lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load history")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"card":    models.NewCardSummary(card, h.imageURL(card.ImagePath)),
		"history": entries,
	}, "")
}

// Balance handles GET /api/v1/balance: the cached balance plus recent
// ledger entries backing it.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	balance, err := h.accounts.GetBalance(c.Context(), account.ID)
	if err != nil {
		logger.LogError("balance lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load balance")
	}

	entries, err := h.ledger.GetByAccount(c.Context(), account.ID, defaultHistoryLimit)
	if err != nil {
		logger.LogError("ledger lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load ledger")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"balance": balance,
		"ledger":  entries,
	}, "")
}
