// Package handlers wires the HTTP surface to the claim and redemption
// engines. Handlers translate between transport and engine vocabulary;
// all business decisions stay in the engines.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
	"github.com/timevault/timevault/timevault/services"
	"github.com/timevault/timevault/timevault/vault/claim"
	"github.com/timevault/timevault/timevault/vault/redemption"
	"github.com/timevault/timevault/timevault/web/middleware"
)

// ImageURLResolver is satisfied by services.ImageService; kept as an
// interface so the server can run without a configured bucket.
type ImageURLResolver interface {
	CardImageURL(imagePath string) string
}

// Pinger is satisfied by database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cards       repositories.CardRepository
	accounts    repositories.AccountRepository
	activity    repositories.ActivityRepository
	redemptions repositories.RedemptionRepository
	ledger      repositories.LedgerRepository
	batches     repositories.BatchRepository
	tickets     repositories.TicketRepository

	claims   *claim.Service
	receipts *redemption.Service
	search   *services.SearchService
	importer *services.BatchImportService
	images   ImageURLResolver
	db       Pinger
}

type Config struct {
	Cards       repositories.CardRepository
	Accounts    repositories.AccountRepository
	Activity    repositories.ActivityRepository
	Redemptions repositories.RedemptionRepository
	Ledger      repositories.LedgerRepository
	Batches     repositories.BatchRepository
	Tickets     repositories.TicketRepository

	Claims   *claim.Service
	Receipts *redemption.Service
	Search   *services.SearchService
	Importer *services.BatchImportService
	Images   ImageURLResolver
	DB       Pinger
}

func New(cfg Config) *Handler {
	return &Handler{
		cards:       cfg.Cards,
		accounts:    cfg.Accounts,
		activity:    cfg.Activity,
		redemptions: cfg.Redemptions,
		ledger:      cfg.Ledger,
		batches:     cfg.Batches,
		tickets:     cfg.Tickets,
		claims:      cfg.Claims,
		receipts:    cfg.Receipts,
		search:      cfg.Search,
		importer:    cfg.Importer,
		images:      cfg.Images,
		db:          cfg.DB,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api/v1", middleware.AuthRequired(h.accounts))

	api.Post("/claims", h.Claim)
	api.Post("/cards/:id/release", h.Release)
	api.Get("/collection", h.Collection)
	api.Get("/activity", h.MyActivity)
	api.Get("/cards/:id", h.CardSummary)
	api.Get("/cards/:id/history", h.CardHistory)

	api.Post("/redemptions", h.SubmitRedemption)
	api.Get("/redemptions", h.MyRedemptions)
	api.Get("/balance", h.Balance)

	api.Post("/tickets", h.CreateTicket)
	api.Get("/tickets", h.MyTickets)

	admin := api.Group("/admin", middleware.AdminRequired())
	admin.Get("/stats", h.AdminStats)
	admin.Get("/cards/search", h.AdminSearchCards)
	admin.Patch("/cards/:id", h.AdminUpdateCard)
	admin.Post("/cards/bulk", h.AdminBulkOperation)
	admin.Get("/cards/:id/owner", h.AdminCardOwner)
	admin.Post("/batches", h.AdminImportBatch)
	admin.Get("/batches", h.AdminListBatches)
	admin.Get("/batches/:id", h.AdminGetBatch)
	admin.Get("/redemptions/pending", h.AdminPendingRedemptions)
	admin.Post("/redemptions/:id/review", h.AdminReviewRedemption)
	admin.Post("/accounts", h.AdminCreateAccount)
	admin.Get("/accounts", h.AdminFindAccount)
	admin.Post("/accounts/:id/blocked", h.AdminSetBlocked)
	admin.Get("/accounts/:id/balance", h.AdminAccountBalance)
	admin.Get("/tickets", h.AdminOpenTickets)
	admin.Post("/tickets/:id/close", h.AdminCloseTicket)
}

// middlewareAccount is never nil past AuthRequired.
func middlewareAccount(c *fiber.Ctx) *models.Account {
	return middleware.AccountFromCtx(c)
}

// imageURL tolerates a missing image service.
func (h *Handler) imageURL(imagePath string) string {
	if h.images == nil {
		return ""
	}
	return h.images.CardImageURL(imagePath)
}
