package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

// ActivityRepository reads the append-only audit trail. Writes happen
// inside the transactions that perform the state changes (see the card and
// redemption repositories); Record exists for those transactions to share.
type ActivityRepository interface {
	Record(ctx context.Context, idb bun.IDB, entry *models.ActivityLogEntry) error
	History(ctx context.Context, cardID int64, limit int) ([]*models.ActivityLogEntry, error)
	AccountHistory(ctx context.Context, accountID int64, limit int) ([]*models.ActivityLogEntry, error)
	CurrentOwnerEmail(ctx context.Context, cardID int64) (string, error)
}

type activityRepository struct {
	db *bun.DB
}

func NewActivityRepository(db *bun.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Record inserts within the caller's transaction (or the bare DB for
// standalone reads-free contexts). An error here must abort the caller's
// transaction: the log entry and the state change are one atomic unit.
func (r *activityRepository) Record(ctx context.Context, idb bun.IDB, entry *models.ActivityLogEntry) error {
	if idb == nil {
		idb = r.db
	}
	return recordActivity(ctx, idb, entry)
}

// recordActivity is shared with the card and redemption repositories so
// their transactions append entries the same way.
func recordActivity(ctx context.Context, idb bun.IDB, entry *models.ActivityLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := idb.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *activityRepository) History(ctx context.Context, cardID int64, limit int) ([]*models.ActivityLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.ActivityLogEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("card_id = ?", cardID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}

func (r *activityRepository) AccountHistory(ctx context.Context, accountID int64, limit int) ([]*models.ActivityLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.ActivityLogEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("account_id = ?", accountID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}

// CurrentOwnerEmail resolves the owner through cards.owner_id, which is
// authoritative. The log is never scanned to decide ownership.
func (r *activityRepository) CurrentOwnerEmail(ctx context.Context, cardID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var email string
	err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Column("email").
		Where("id = (SELECT owner_id FROM cards WHERE id = ?)", cardID).
		Scan(ctx, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	return email, err
}
