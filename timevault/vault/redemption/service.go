package redemption

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
)

type CardStore interface {
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Card, error)
}

type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

// ReceiptStore is the transactional half of the engine: SubmitCards and
// Resolve run their multi-row mutations in single transactions with the
// conditional-write guards described on the repository interface.
type ReceiptStore interface {
	GetByID(ctx context.Context, id int64) (*models.Redemption, error)
	SubmitCards(ctx context.Context, accountID int64, cards []*models.Card) (*models.Redemption, int64, error)
	Resolve(ctx context.Context, redemptionID int64, decision models.RedemptionDecision, adminID int64, notes string) (*models.Redemption, bool, error)
}

type Service struct {
	cards    CardStore
	accounts AccountStore
	receipts ReceiptStore
}

func NewService(cards CardStore, accounts AccountStore, receipts ReceiptStore) *Service {
	return &Service{
		cards:    cards,
		accounts: accounts,
		receipts: receipts,
	}
}

// Submit creates a redemption receipt for the whole card set, or refuses
// the whole set. Per-card values are snapshotted at submission time.
func (s *Service) Submit(ctx context.Context, cardIDs []int64, accountID int64) (SubmitResult, error) {
	if len(cardIDs) == 0 {
		return SubmitResult{
			Status:  SubmitRefused,
			Message: "No cards selected.",
		}, nil
	}
	cardIDs = dedupe(cardIDs)

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return submitError(), fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if account.Blocked {
		return SubmitResult{
			Status:  SubmitBlocked,
			Message: "Your account is blocked from submitting redemptions.",
		}, nil
	}

	cards, err := s.cards.GetByIDs(ctx, cardIDs)
	if err != nil {
		return submitError(), fmt.Errorf("card lookup failed: %w", err)
	}

	byID := make(map[int64]*models.Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}

	// Pre-flight check so the common refusals never open a transaction.
	// The conditional writes inside SubmitCards re-verify under the
	// transaction, so a race between here and there still rolls back.
	ordered := make([]*models.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		card, ok := byID[id]
		if !ok {
			return refusal(id, RefusalNotFound), nil
		}
		if reason, ok := ineligible(card, accountID); ok {
			return refusal(id, reason), nil
		}
		ordered = append(ordered, card)
	}

	receipt, failedCardID, err := s.receipts.SubmitCards(ctx, accountID, ordered)
	if err != nil {
		return submitError(), fmt.Errorf("redemption submit failed: %w", err)
	}
	if failedCardID != 0 {
		return s.classifyFailedSubmit(ctx, failedCardID, accountID)
	}

	slog.Info("Redemption submitted",
		slog.Int64("account_id", accountID),
		slog.String("receipt_code", receipt.ReceiptCode),
		slog.Int("cards", len(ordered)),
		slog.Int64("total_value", receipt.TotalValue),
	)
	return SubmitResult{
		Status:     SubmitOK,
		Message:    fmt.Sprintf("Submitted %d card(s) worth %d TIME for review.", len(ordered), receipt.TotalValue),
		Redemption: receipt,
	}, nil
}

func (s *Service) classifyFailedSubmit(ctx context.Context, cardID, accountID int64) (SubmitResult, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return refusal(cardID, RefusalNotFound), nil
		}
		return submitError(), fmt.Errorf("post-submit lookup failed: %w", err)
	}
	if reason, ok := ineligible(card, accountID); ok {
		return refusal(cardID, reason), nil
	}
	// Should not happen: the conditional write refused a card that now
	// looks eligible.
	return refusal(cardID, RefusalAlreadyPending), nil
}

// ineligible classifies why a card cannot join a submission, in precedence
// order matching the conditional write.
func ineligible(card *models.Card, accountID int64) (RefusalReason, bool) {
	switch {
	case card.DeletedAt != nil:
		return RefusalNotFound, true
	case !card.IsActive:
		return RefusalInactive, true
	case !card.OwnedBy(accountID):
		return RefusalNotOwner, true
	case card.RedemptionStatus == models.RedemptionPending:
		return RefusalAlreadyPending, true
	case card.RedemptionStatus == models.RedemptionCredited:
		return RefusalAlreadyCredited, true
	}
	return "", false
}

// Review applies an admin decision to a pending redemption. Reviewing an
// already-resolved redemption returns AlreadyResolved and changes nothing;
// the TIME credit can therefore happen at most once per redemption.
func (s *Service) Review(ctx context.Context, redemptionID int64, decision models.RedemptionDecision, adminID int64, notes string) (ReviewResult, error) {
	if decision != models.DecisionCredit && decision != models.DecisionReject {
		return ReviewResult{
			Status:  ReviewError,
			Message: fmt.Sprintf("Unknown decision %q.", decision),
		}, nil
	}

	redemption, resolved, err := s.receipts.Resolve(ctx, redemptionID, decision, adminID, notes)
	if err != nil {
		return ReviewResult{Status: ReviewError, Message: "Something went wrong."},
			fmt.Errorf("review of redemption %d failed: %w", redemptionID, err)
	}
	if !resolved {
		// Missing and already-resolved look the same to the guard;
		// one read tells them apart.
		if _, err := s.receipts.GetByID(ctx, redemptionID); err != nil {
			if repositories.IsNotFound(err) {
				return ReviewResult{Status: ReviewNotFound, Message: "Redemption not found."}, nil
			}
			return ReviewResult{Status: ReviewError, Message: "Something went wrong."},
				fmt.Errorf("post-review lookup failed: %w", err)
		}
		return ReviewResult{
			Status:  ReviewAlreadyResolved,
			Message: "This redemption has already been reviewed.",
		}, nil
	}

	slog.Info("Redemption reviewed",
		slog.Int64("redemption_id", redemptionID),
		slog.String("decision", string(decision)),
		slog.Int64("admin_id", adminID),
	)

	if decision == models.DecisionCredit {
		return ReviewResult{
			Status:     ReviewCredited,
			Message:    fmt.Sprintf("Credited %d TIME.", redemption.TotalValue),
			Redemption: redemption,
		}, nil
	}
	return ReviewResult{
		Status:     ReviewRejected,
		Message:    "Redemption rejected. The cards can be submitted again.",
		Redemption: redemption,
	}, nil
}

func refusal(cardID int64, reason RefusalReason) SubmitResult {
	return SubmitResult{
		Status:  SubmitRefused,
		Message: fmt.Sprintf("Card %d cannot be redeemed (%s). Nothing was submitted.", cardID, reason),
		Refusal: &CardRefusal{CardID: cardID, Reason: reason},
	}
}

func submitError() SubmitResult {
	return SubmitResult{Status: SubmitError, Message: "Something went wrong. Please try again."}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
