package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
	"github.com/timevault/timevault/timevault/web/utils"
)

const accountLocalKey = "account"

// AuthRequired resolves the Bearer token to an account and stores it in
// the request locals. Blocked accounts still authenticate; the engines
// decide which operations they may perform.
func AuthRequired(accounts repositories.AccountRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header")
		}

		account, err := accounts.GetByAPIToken(c.Context(), token)
		if err != nil {
			if repositories.IsNotFound(err) {
				return utils.SendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "authentication failed")
		}

		c.Locals(accountLocalKey, account)
		return c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromCtx(c)
		if account == nil || !account.IsAdmin {
			return utils.SendError(c, fiber.StatusForbidden, "FORBIDDEN", "admin access required")
		}
		return c.Next()
	}
}

func AccountFromCtx(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals(accountLocalKey).(*models.Account)
	return account
}
