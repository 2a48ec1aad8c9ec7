package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const (
	defaultQueryTimeout = 10 * time.Second
	summaryCacheSize    = 4096
	bulkWorkers         = 8
)

// BulkOperation is an admin bulk mutation target state.
type BulkOperation string

const (
	BulkActivate   BulkOperation = "activate"
	BulkDeactivate BulkOperation = "deactivate"
	BulkSoftDelete BulkOperation = "soft-delete"
)

var ErrInvalidBulkOperation = errors.New("invalid bulk operation")

type CardRepository interface {
	Create(ctx context.Context, card *models.Card) error
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Card, error)
	GetByCode(ctx context.Context, code string) (*models.Card, error)
	GetByClaimToken(ctx context.Context, token string) (*models.Card, error)
	GetAllByOwner(ctx context.Context, accountID int64) ([]*models.Card, error)
	SearchByCodePrefix(ctx context.Context, prefix string, limit int) ([]*models.Card, error)
	GetAll(ctx context.Context) ([]*models.Card, error)
	SummaryByID(ctx context.Context, id int64) (*models.Card, error)
	Update(ctx context.Context, card *models.Card) error
	BulkCreate(ctx context.Context, cards []*models.Card) (int, error)
	UpdateMany(ctx context.Context, ids []int64, op BulkOperation) (int64, error)
	Count(ctx context.Context) (int64, error)

	// ClaimCard atomically sets owner_id on an unclaimed, claimable card
	// and appends the claimed activity entry in the same transaction.
	// Returns false when the conditional write matched no row.
	ClaimCard(ctx context.Context, cardID, accountID int64, source string) (bool, error)

	// ReleaseCard atomically clears owner_id provided the caller still
	// owns the card and no redemption decision is outstanding.
	ReleaseCard(ctx context.Context, cardID, ownerID int64) (bool, error)
}

type cardRepository struct {
	db      *bun.DB
	summary *lru.Cache
}

func NewCardRepository(db *bun.DB) CardRepository {
	cache, _ := lru.New(summaryCacheSize)
	return &cardRepository{
		db:      db,
		summary: cache,
	}
}

func (r *cardRepository) Create(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	card.CreatedAt = time.Now()
	card.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().
		Model(card).
		Returning("id").
		Exec(ctx)

	return err
}

func (r *cardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// Always hits the database: claim and release classification depend on
	// a fresh owner_id. The LRU serves SummaryByID only.
	card := new(models.Card)
	err := r.db.NewSelect().
		Model(card).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return card, nil
}

// SummaryByID is the cached display-path read. Values and artwork change
// rarely; mutations invalidate the entry.
func (r *cardRepository) SummaryByID(ctx context.Context, id int64) (*models.Card, error) {
	if cached, ok := r.summary.Get(id); ok {
		return cached.(*models.Card), nil
	}

	card, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.summary.Add(id, card)
	return card, nil
}

func (r *cardRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if len(ids) == 0 {
		return nil, nil
	}

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)

	return cards, err
}

func (r *cardRepository) GetByCode(ctx context.Context, code string) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	card := new(models.Card)
	err := r.db.NewSelect().
		Model(card).
		Where("LOWER(code) = LOWER(?)", code).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return card, nil
}

// GetByClaimToken looks up by exact token match only. Tokens are never
// exposed through prefix or fuzzy search, which keeps them unguessable.
func (r *cardRepository) GetByClaimToken(ctx context.Context, token string) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	card := new(models.Card)
	err := r.db.NewSelect().
		Model(card).
		Where("claim_token = ?", token).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return card, nil
}

func (r *cardRepository) GetAllByOwner(ctx context.Context, accountID int64) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Where("owner_id = ?", accountID).
		Where("deleted_at IS NULL").
		Order("id ASC").
		Scan(ctx)

	return cards, err
}

func (r *cardRepository) SearchByCodePrefix(ctx context.Context, prefix string, limit int) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Where("LOWER(code) LIKE LOWER(?)", prefix+"%").
		Where("deleted_at IS NULL").
		Order("code ASC").
		Limit(limit).
		Scan(ctx)

	return cards, err
}

func (r *cardRepository) GetAll(ctx context.Context) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Where("deleted_at IS NULL").
		Order("id ASC").
		Scan(ctx)

	return cards, err
}

func (r *cardRepository) Update(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	card.UpdatedAt = time.Now()

	_, err := r.db.NewUpdate().
		Model(card).
		WherePK().
		Exec(ctx)

	if err == nil {
		r.summary.Remove(card.ID)
	}

	return err
}

func (r *cardRepository) BulkCreate(ctx context.Context, cards []*models.Card) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if len(cards) == 0 {
		return 0, nil
	}

	now := time.Now()
	for _, card := range cards {
		card.CreatedAt = now
		card.UpdatedAt = now
	}

	res, err := r.db.NewInsert().
		Model(&cards).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	return int(affected), err
}

// UpdateMany applies the operation per row, independently across rows.
// Partial success is acceptable here, unlike redemption submission: the
// returned count is the number of rows actually changed.
func (r *cardRepository) UpdateMany(ctx context.Context, ids []int64, op BulkOperation) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if op != BulkActivate && op != BulkDeactivate && op != BulkSoftDelete {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBulkOperation, op)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkWorkers)

	results := make([]int64, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			affected, err := r.applyBulkOp(gctx, id, op)
			if err != nil {
				return err
			}
			results[i] = affected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Rows already updated stay updated; report what we know.
		var total int64
		for _, n := range results {
			total += n
		}
		return total, err
	}

	var total int64
	for _, n := range results {
		total += n
	}
	return total, nil
}

func (r *cardRepository) applyBulkOp(ctx context.Context, id int64, op BulkOperation) (int64, error) {
	q := r.db.NewUpdate().
		Model((*models.Card)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id)

	switch op {
	case BulkActivate:
		q = q.Set("is_active = TRUE").Where("deleted_at IS NULL")
	case BulkDeactivate:
		q = q.Set("is_active = FALSE").Where("deleted_at IS NULL")
	case BulkSoftDelete:
		q = q.Set("deleted_at = ?", time.Now()).Where("deleted_at IS NULL")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}

	r.summary.Remove(id)
	return res.RowsAffected()
}

func (r *cardRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Card)(nil)).
		Where("deleted_at IS NULL").
		Count(ctx)

	return int64(count), err
}

func (r *cardRepository) ClaimCard(ctx context.Context, cardID, accountID int64, source string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// The read-check-write collapses into one conditional update: two
	// concurrent claims serialize here, and exactly one matches the row.
	res, err := tx.NewUpdate().
		Model((*models.Card)(nil)).
		Set("owner_id = ?", accountID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", cardID).
		Where("owner_id IS NULL").
		Where("is_active = TRUE").
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	entry := &models.ActivityLogEntry{
		CardID:    cardID,
		AccountID: accountID,
		Action:    models.ActionClaimed,
		Metadata:  map[string]any{"source": source},
	}
	if err = recordActivity(ctx, tx, entry); err != nil {
		// Log append failure rolls back the ownership change; the log
		// and the mutation are one atomic unit.
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	r.summary.Remove(cardID)
	return true, nil
}

func (r *cardRepository) ReleaseCard(ctx context.Context, cardID, ownerID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// redemption_status is preserved: a credited card stays credited
	// through release and cannot be redeemed by the next claimant.
	res, err := tx.NewUpdate().
		Model((*models.Card)(nil)).
		Set("owner_id = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", cardID).
		Where("owner_id = ?", ownerID).
		Where("redemption_status <> ?", models.RedemptionPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	entry := &models.ActivityLogEntry{
		CardID:          cardID,
		AccountID:       ownerID,
		Action:          models.ActionReleased,
		PreviousOwnerID: &ownerID,
	}
	if err = recordActivity(ctx, tx, entry); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	r.summary.Remove(cardID)
	return true, nil
}

// IsNotFound reports whether err is the no-rows sentinel from a lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
