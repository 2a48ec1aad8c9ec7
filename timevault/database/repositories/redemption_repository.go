package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
)

type RedemptionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Redemption, error)
	GetByAccount(ctx context.Context, accountID int64) ([]*models.Redemption, error)
	ListByStatus(ctx context.Context, status models.RedemptionStatus, limit int) ([]*models.Redemption, error)

	// SubmitCards moves every card to pending and creates the receipt in
	// one transaction. The whole batch rolls back if any card's
	// conditional write matches no row; the failing card id is returned
	// so the caller can classify the reason.
	SubmitCards(ctx context.Context, accountID int64, cards []*models.Card) (*models.Redemption, int64, error)

	// Resolve applies the admin decision. The status precondition on the
	// redemption row guards against double review: the second invocation
	// returns resolved=false and performs no writes.
	Resolve(ctx context.Context, redemptionID int64, decision models.RedemptionDecision, adminID int64, notes string) (*models.Redemption, bool, error)
}

type redemptionRepository struct {
	db *bun.DB
}

func NewRedemptionRepository(db *bun.DB) RedemptionRepository {
	return &redemptionRepository{db: db}
}

func (r *redemptionRepository) GetByID(ctx context.Context, id int64) (*models.Redemption, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	redemption := new(models.Redemption)
	err := r.db.NewSelect().
		Model(redemption).
		Relation("Cards").
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return redemption, nil
}

func (r *redemptionRepository) GetByAccount(ctx context.Context, accountID int64) ([]*models.Redemption, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var redemptions []*models.Redemption
	err := r.db.NewSelect().
		Model(&redemptions).
		Relation("Cards").
		Where("r.account_id = ?", accountID).
		Order("r.created_at DESC").
		Scan(ctx)

	return redemptions, err
}

func (r *redemptionRepository) ListByStatus(ctx context.Context, status models.RedemptionStatus, limit int) ([]*models.Redemption, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	var redemptions []*models.Redemption
	err := r.db.NewSelect().
		Model(&redemptions).
		Relation("Cards").
		Where("r.status = ?", status).
		Order("r.created_at ASC").
		Limit(limit).
		Scan(ctx)

	return redemptions, err
}

func (r *redemptionRepository) SubmitCards(ctx context.Context, accountID int64, cards []*models.Card) (*models.Redemption, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	now := time.Now()

	// Per-card conditional write. Concurrent submissions of overlapping
	// sets serialize here: the status precondition lets exactly one
	// batch move each card to pending.
	for _, card := range cards {
		res, err := tx.NewUpdate().
			Model((*models.Card)(nil)).
			Set("redemption_status = ?", models.RedemptionPending).
			Set("updated_at = ?", now).
			Where("id = ?", card.ID).
			Where("owner_id = ?", accountID).
			Where("redemption_status IN (?)", bun.In([]models.RedemptionStatus{models.RedemptionNone, models.RedemptionRejected})).
			Where("is_active = TRUE").
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return nil, 0, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, 0, err
		}
		if affected == 0 {
			// Entire batch rolls back via the deferred Rollback.
			return nil, card.ID, nil
		}
	}

	var total int64
	for _, card := range cards {
		total += card.TimeValue
	}

	redemption := &models.Redemption{
		ReceiptCode: uuid.NewString(),
		AccountID:   accountID,
		Status:      models.RedemptionPending,
		TotalValue:  total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err = tx.NewInsert().Model(redemption).Returning("id").Exec(ctx); err != nil {
		return nil, 0, err
	}

	receiptCards := make([]*models.RedemptionCard, 0, len(cards))
	entries := make([]*models.ActivityLogEntry, 0, len(cards))
	for _, card := range cards {
		receiptCards = append(receiptCards, &models.RedemptionCard{
			RedemptionID: redemption.ID,
			CardID:       card.ID,
			Value:        card.TimeValue,
		})
		entries = append(entries, &models.ActivityLogEntry{
			CardID:    card.ID,
			AccountID: accountID,
			Action:    models.ActionRedemptionSubmitted,
			Metadata: map[string]any{
				"receipt_code": redemption.ReceiptCode,
				"value":        card.TimeValue,
			},
			CreatedAt: now,
		})
	}

	if _, err = tx.NewInsert().Model(&receiptCards).Exec(ctx); err != nil {
		return nil, 0, err
	}
	if _, err = tx.NewInsert().Model(&entries).Exec(ctx); err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, err
	}

	redemption.Cards = receiptCards
	return redemption, 0, nil
}

func (r *redemptionRepository) Resolve(ctx context.Context, redemptionID int64, decision models.RedemptionDecision, adminID int64, notes string) (*models.Redemption, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var cardStatus models.RedemptionStatus
	var action models.ActivityAction
	switch decision {
	case models.DecisionCredit:
		cardStatus = models.RedemptionCredited
		action = models.ActionRedemptionCredited
	case models.DecisionReject:
		cardStatus = models.RedemptionRejected
		action = models.ActionRedemptionRejected
	default:
		return nil, false, fmt.Errorf("invalid decision: %q", decision)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	now := time.Now()

	// Double review (admin double-click, retried request) loses this CAS
	// and changes nothing.
	res, err := tx.NewUpdate().
		Model((*models.Redemption)(nil)).
		Set("status = ?", cardStatus).
		Set("admin_notes = ?", notes).
		Set("reviewed_by = ?", adminID).
		Set("reviewed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", redemptionID).
		Where("status = ?", models.RedemptionPending).
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		return nil, false, nil
	}

	redemption := new(models.Redemption)
	err = tx.NewSelect().
		Model(redemption).
		Relation("Cards").
		Where("r.id = ?", redemptionID).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	cardIDs := make([]int64, 0, len(redemption.Cards))
	for _, rc := range redemption.Cards {
		cardIDs = append(cardIDs, rc.CardID)
	}

	if len(cardIDs) > 0 {
		_, err = tx.NewUpdate().
			Model((*models.Card)(nil)).
			Set("redemption_status = ?", cardStatus).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(cardIDs)).
			Where("redemption_status = ?", models.RedemptionPending).
			Exec(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	entries := make([]*models.ActivityLogEntry, 0, len(redemption.Cards))
	for _, rc := range redemption.Cards {
		metadata := map[string]any{
			"receipt_code": redemption.ReceiptCode,
		}
		if notes != "" {
			metadata["admin_notes"] = notes
		}
		if decision == models.DecisionCredit {
			metadata["credited_amount"] = rc.Value
		}
		entries = append(entries, &models.ActivityLogEntry{
			CardID:    rc.CardID,
			AccountID: redemption.AccountID,
			Action:    action,
			Metadata:  metadata,
			CreatedAt: now,
		})
	}
	if len(entries) > 0 {
		if _, err = tx.NewInsert().Model(&entries).Exec(ctx); err != nil {
			return nil, false, err
		}
	}

	if decision == models.DecisionCredit {
		// The ledger credit rides the same transaction as the status
		// flip, so it happens exactly once per redemption.
		ledgerEntry := &models.TimeLedgerEntry{
			AccountID:    redemption.AccountID,
			Amount:       redemption.TotalValue,
			Reason:       "redemption_credit",
			RedemptionID: &redemption.ID,
			CreatedAt:    now,
		}
		if _, err = tx.NewInsert().Model(ledgerEntry).Exec(ctx); err != nil {
			return nil, false, err
		}

		_, err = tx.NewUpdate().
			Model((*models.Account)(nil)).
			Set("time_balance = time_balance + ?", redemption.TotalValue).
			Set("updated_at = ?", now).
			Where("id = ?", redemption.AccountID).
			Exec(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}

	return redemption, true, nil
}
