package repositories

import (
	"context"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *models.SupportTicket) error
	GetByID(ctx context.Context, id int64) (*models.SupportTicket, error)
	GetByAccount(ctx context.Context, accountID int64) ([]*models.SupportTicket, error)
	ListOpen(ctx context.Context, limit int) ([]*models.SupportTicket, error)
	SetStatus(ctx context.Context, id int64, status models.TicketStatus) error
}

type ticketRepository struct {
	db *bun.DB
}

func NewTicketRepository(db *bun.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.SupportTicket) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	ticket.Status = models.TicketOpen
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(ticket).
		Returning("id").
		Exec(ctx)

	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	ticket := new(models.SupportTicket)
	err := r.db.NewSelect().
		Model(ticket).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

func (r *ticketRepository) GetByAccount(ctx context.Context, accountID int64) ([]*models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var tickets []*models.SupportTicket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Scan(ctx)

	return tickets, err
}

func (r *ticketRepository) ListOpen(ctx context.Context, limit int) ([]*models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	var tickets []*models.SupportTicket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("status = ?", models.TicketOpen).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)

	return tickets, err
}

func (r *ticketRepository) SetStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := r.db.NewUpdate().
		Model((*models.SupportTicket)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}
