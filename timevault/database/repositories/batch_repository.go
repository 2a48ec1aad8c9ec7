package repositories

import (
	"context"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *models.PrintBatch) error
	GetByID(ctx context.Context, id int64) (*models.PrintBatch, error)
	GetAll(ctx context.Context) ([]*models.PrintBatch, error)
	SetCardCount(ctx context.Context, id int64, count int) error
}

type batchRepository struct {
	db *bun.DB
}

func NewBatchRepository(db *bun.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *models.PrintBatch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	batch.CreatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(batch).
		Returning("id").
		Exec(ctx)

	return err
}

func (r *batchRepository) GetByID(ctx context.Context, id int64) (*models.PrintBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	batch := new(models.PrintBatch)
	err := r.db.NewSelect().
		Model(batch).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return batch, nil
}

func (r *batchRepository) GetAll(ctx context.Context) ([]*models.PrintBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var batches []*models.PrintBatch
	err := r.db.NewSelect().
		Model(&batches).
		Order("created_at DESC").
		Scan(ctx)

	return batches, err
}

func (r *batchRepository) SetCardCount(ctx context.Context, id int64, count int) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := r.db.NewUpdate().
		Model((*models.PrintBatch)(nil)).
		Set("card_count = ?", count).
		Where("id = ?", id).
		Exec(ctx)

	return err
}
