package repositories

import (
	"context"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByAPIToken(ctx context.Context, token string) (*models.Account, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	GetBalance(ctx context.Context, id int64) (int64, error)
}

type accountRepository struct {
	db *bun.DB
}

func NewAccountRepository(db *bun.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(account).
		Returning("id").
		Exec(ctx)

	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("LOWER(email) = LOWER(?)", email).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *accountRepository) GetByAPIToken(ctx context.Context, token string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("api_token = ?", token).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *accountRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("blocked = ?", blocked).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

func (r *accountRepository) GetBalance(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var balance int64
	err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Column("time_balance").
		Where("id = ?", id).
		Scan(ctx, &balance)

	return balance, err
}
