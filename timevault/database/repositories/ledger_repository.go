package repositories

import (
	"context"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

// LedgerRepository reads the append-only TIME ledger. Redemption credits are
// written by the redemption repository inside the review transaction;
// Append exists for manual adjustments (compensating entries, never edits).
type LedgerRepository interface {
	Append(ctx context.Context, entry *models.TimeLedgerEntry) error
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.TimeLedgerEntry, error)
	SumByAccount(ctx context.Context, accountID int64) (int64, error)
}

type ledgerRepository struct {
	db *bun.DB
}

func NewLedgerRepository(db *bun.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *models.TimeLedgerEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return err
	}

	_, err = tx.NewUpdate().
		Model((*models.Account)(nil)).
		Set("time_balance = time_balance + ?", entry.Amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", entry.AccountID).
		Exec(ctx)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *ledgerRepository) GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.TimeLedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.TimeLedgerEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("account_id = ?", accountID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}

// SumByAccount recomputes the balance from the ledger; used by consistency
// checks against accounts.time_balance.
func (r *ledgerRepository) SumByAccount(ctx context.Context, accountID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var sum int64
	err := r.db.NewSelect().
		Model((*models.TimeLedgerEntry)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("account_id = ?", accountID).
		Scan(ctx, &sum)

	return sum, err
}
