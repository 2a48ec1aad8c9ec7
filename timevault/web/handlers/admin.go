package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/services"
	"github.com/timevault/timevault/timevault/vault/redemption"
	webmodels "github.com/timevault/timevault/timevault/web/models"
	"github.com/timevault/timevault/timevault/web/utils"
)

const defaultPendingLimit = 100

// AdminSearchCards handles GET /api/v1/admin/cards/search?q=. Lookup is
// by id, code prefix, or fuzzy name; claim tokens are not searchable.
func (h *Handler) AdminSearchCards(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_QUERY", "query parameter q is required")
	}

	cards, err := h.search.Search(c.Context(), query, c.QueryInt("limit"))
	if err != nil {
		logger.LogError("card search failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "search failed")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"cards": cards,
		"count": len(cards),
	}, "")
}

// AdminUpdateCard handles PATCH /api/v1/admin/cards/:id. Ownership and
// redemption status are not editable here; those move only through the
// engines.
func (h *Handler) AdminUpdateCard(c *fiber.Ctx) error {
	cardID, err := c.ParamsInt("id")
	if err != nil || cardID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid card id")
	}

	var req webmodels.UpdateCardRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	card, err := h.cards.GetByID(c.Context(), int64(cardID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "card not found")
		}
		logger.LogError("card lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load card")
	}

	if req.Name != nil {
		card.Name = *req.Name
	}
	if req.Era != nil {
		card.Era = *req.Era
	}
	if req.Rarity != nil {
		card.Rarity = *req.Rarity
	}
	if req.ImagePath != nil {
		card.ImagePath = *req.ImagePath
	}
	if req.TimeValue != nil {
		card.TimeValue = *req.TimeValue
	}
	if req.IsActive != nil {
		card.IsActive = *req.IsActive
	}

	if err := h.cards.Update(c.Context(), card); err != nil {
		logger.LogError("card update failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to update card")
	}

	return utils.SendSuccess(c, fiber.StatusOK, card, "Card updated.")
}

// AdminBulkOperation handles POST /api/v1/admin/cards/bulk. Unlike
// redemption submission this is best-effort per card: the response
// reports how many rows actually changed.
func (h *Handler) AdminBulkOperation(c *fiber.Ctx) error {
	var req webmodels.BulkOperationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if len(req.CardIDs) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "card_ids is required")
	}

	affected, err := h.cards.UpdateMany(c.Context(), req.CardIDs, repositories.BulkOperation(req.Operation))
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidBulkOperation) {
			return utils.SendError(c, fiber.StatusBadRequest, "INVALID_OPERATION", "unknown bulk operation")
		}
		logger.LogError("bulk operation failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "bulk operation failed")
	}

	return utils.SendSuccess(c, fiber.StatusOK, webmodels.BulkOperationResponse{
		Operation: req.Operation,
		Requested: len(req.CardIDs),
		Affected:  affected,
	}, "Bulk operation applied.")
}

// AdminCardOwner handles GET /api/v1/admin/cards/:id/owner: the current
// owner's email for support lookups, empty when unclaimed.
func (h *Handler) AdminCardOwner(c *fiber.Ctx) error {
	cardID, err := c.ParamsInt("id")
	if err != nil || cardID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid card id")
	}

	email, err := h.activity.CurrentOwnerEmail(c.Context(), int64(cardID))
	if err != nil {
		logger.LogError("owner lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to look up owner")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"card_id":     cardID,
		"owner_email": email,
	}, "")
}

// AdminImportBatch handles POST /api/v1/admin/batches.
func (h *Handler) AdminImportBatch(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	var req services.BatchImportRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	req.CreatedBy = account.ID

	batch, created, err := h.importer.Import(c.Context(), &req)
	if err != nil {
		logger.LogError("batch import failed", err)
		return utils.SendError(c, fiber.StatusBadRequest, "IMPORT_FAILED", err.Error())
	}

	return utils.SendSuccess(c, fiber.StatusCreated, fiber.Map{
		"batch":   batch,
		"created": created,
	}, "Batch imported.")
}

// AdminListBatches handles GET /api/v1/admin/batches.
func (h *Handler) AdminListBatches(c *fiber.Ctx) error {
	batches, err := h.batches.GetAll(c.Context())
	if err != nil {
		logger.LogError("batch list failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load batches")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"batches": batches,
		"count":   len(batches),
	}, "")
}

// AdminPendingRedemptions handles GET /api/v1/admin/redemptions/pending,
// the review queue ordered oldest first.
func (h *Handler) AdminPendingRedemptions(c *fiber.Ctx) error {
	pending, err := h.redemptions.ListByStatus(c.Context(), models.RedemptionPending, defaultPendingLimit)
	if err != nil {
		logger.LogError("pending list failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load pending redemptions")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"redemptions": pending,
		"count":       len(pending),
	}, "")
}

// AdminReviewRedemption handles POST /api/v1/admin/redemptions/:id/review.
func (h *Handler) AdminReviewRedemption(c *fiber.Ctx) error {
	account := middlewareAccount(c)

	redemptionID, err := c.ParamsInt("id")
	if err != nil || redemptionID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid redemption id")
	}

	var req webmodels.ReviewRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	result, err := h.receipts.Review(c.Context(), int64(redemptionID),
		models.RedemptionDecision(req.Decision), account.ID, req.Notes)
	if err != nil {
		logger.LogError("redemption review failed", err)
	}

	body := fiber.Map{"status": result.Status}
	if result.Redemption != nil {
		body["redemption"] = result.Redemption
	}

	return c.Status(reviewHTTPStatus(result.Status)).JSON(
		webmodels.NewSuccessResponse(body, result.Message))
}

// AdminGetBatch handles GET /api/v1/admin/batches/:id.
func (h *Handler) AdminGetBatch(c *fiber.Ctx) error {
	batchID, err := c.ParamsInt("id")
	if err != nil || batchID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid batch id")
	}

	batch, err := h.batches.GetByID(c.Context(), int64(batchID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "batch not found")
		}
		logger.LogError("batch lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load batch")
	}

	return utils.SendSuccess(c, fiber.StatusOK, batch, "")
}

// AdminCreateAccount handles POST /api/v1/admin/accounts. Accounts are
// provisioned here with a fresh API token; the identity integration maps
// its sessions onto these tokens.
func (h *Handler) AdminCreateAccount(c *fiber.Ctx) error {
	var req webmodels.CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if req.Email == "" || req.Username == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "email and username are required")
	}

	account := &models.Account{
		Email:    req.Email,
		Username: req.Username,
		APIToken: uuid.NewString(),
		IsAdmin:  req.IsAdmin,
	}
	if err := h.accounts.Create(c.Context(), account); err != nil {
		logger.LogError("account create failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to create account")
	}

	return utils.SendSuccess(c, fiber.StatusCreated, account, "Account created.")
}

// AdminFindAccount handles GET /api/v1/admin/accounts?email=.
func (h *Handler) AdminFindAccount(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_QUERY", "query parameter email is required")
	}

	account, err := h.accounts.GetByEmail(c.Context(), email)
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "account not found")
		}
		logger.LogError("account lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load account")
	}

	return utils.SendSuccess(c, fiber.StatusOK, account, "")
}

// AdminSetBlocked handles POST /api/v1/admin/accounts/:id/blocked.
func (h *Handler) AdminSetBlocked(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid account id")
	}

	var req webmodels.SetBlockedRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	if err := h.accounts.SetBlocked(c.Context(), int64(accountID), req.Blocked); err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "account not found")
		}
		logger.LogError("set blocked failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to update account")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"account_id": accountID,
		"blocked":    req.Blocked,
	}, "Account updated.")
}

// AdminStats handles GET /api/v1/admin/stats.
func (h *Handler) AdminStats(c *fiber.Ctx) error {
	cardCount, err := h.cards.Count(c.Context())
	if err != nil {
		logger.LogError("card count failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load stats")
	}

	pending, err := h.redemptions.ListByStatus(c.Context(), models.RedemptionPending, defaultPendingLimit)
	if err != nil {
		logger.LogError("pending count failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load stats")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"cards":               cardCount,
		"pending_redemptions": len(pending),
	}, "")
}

// AdminAccountBalance handles GET /api/v1/admin/accounts/:id/balance.
// Reports the cached balance next to the ledger sum so drift is visible.
func (h *Handler) AdminAccountBalance(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid account id")
	}

	balance, err := h.accounts.GetBalance(c.Context(), int64(accountID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "account not found")
		}
		logger.LogError("balance lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load balance")
	}

	ledgerSum, err := h.ledger.SumByAccount(c.Context(), int64(accountID))
	if err != nil {
		logger.LogError("ledger sum failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load ledger")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"account_id": accountID,
		"balance":    balance,
		"ledger_sum": ledgerSum,
		"consistent": balance == ledgerSum,
	}, "")
}

// AdminOpenTickets handles GET /api/v1/admin/tickets.
func (h *Handler) AdminOpenTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListOpen(c.Context(), defaultPendingLimit)
	if err != nil {
		logger.LogError("ticket list failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load tickets")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{
		"tickets": tickets,
		"count":   len(tickets),
	}, "")
}

// AdminCloseTicket handles POST /api/v1/admin/tickets/:id/close.
func (h *Handler) AdminCloseTicket(c *fiber.Ctx) error {
	ticketID, err := c.ParamsInt("id")
	if err != nil || ticketID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid ticket id")
	}

	if _, err := h.tickets.GetByID(c.Context(), int64(ticketID)); err != nil {
		if repositories.IsNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "ticket not found")
		}
		logger.LogError("ticket lookup failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to load ticket")
	}

	if err := h.tickets.SetStatus(c.Context(), int64(ticketID), models.TicketClosed); err != nil {
		logger.LogError("ticket close failed", err)
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to close ticket")
	}

	return utils.SendSuccess(c, fiber.StatusOK, fiber.Map{"ticket_id": ticketID}, "Ticket closed.")
}

func reviewHTTPStatus(status redemption.ReviewStatus) int {
	switch status {
	case redemption.ReviewCredited, redemption.ReviewRejected:
		return fiber.StatusOK
	case redemption.ReviewAlreadyResolved:
		return fiber.StatusConflict
	case redemption.ReviewNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
