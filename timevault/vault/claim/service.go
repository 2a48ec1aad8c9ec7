package claim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
)

// CardStore is the slice of the card registry the claim engine needs. The
// conditional-write methods carry the atomicity guarantees; everything else
// is plain reads.
type CardStore interface {
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	GetByCode(ctx context.Context, code string) (*models.Card, error)
	GetByClaimToken(ctx context.Context, token string) (*models.Card, error)
	ClaimCard(ctx context.Context, cardID, accountID int64, source string) (bool, error)
	ReleaseCard(ctx context.Context, cardID, ownerID int64) (bool, error)
}

type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

type Service struct {
	cards    CardStore
	accounts AccountStore
}

func NewService(cards CardStore, accounts AccountStore) *Service {
	return &Service{
		cards:    cards,
		accounts: accounts,
	}
}

// ClaimByToken claims via the QR claim token, the preferred path.
func (s *Service) ClaimByToken(ctx context.Context, token string, accountID int64) (Result, error) {
	return s.claim(ctx, accountID, SourceToken, func(ctx context.Context) (*models.Card, error) {
		return s.cards.GetByClaimToken(ctx, token)
	})
}

// ClaimByCode claims via the printed code, the legacy path. Same contract
// as ClaimByToken; both share the atomic claim core.
func (s *Service) ClaimByCode(ctx context.Context, code string, accountID int64) (Result, error) {
	return s.claim(ctx, accountID, SourceCode, func(ctx context.Context) (*models.Card, error) {
		return s.cards.GetByCode(ctx, code)
	})
}

func (s *Service) claim(ctx context.Context, accountID int64, source Source, lookup func(context.Context) (*models.Card, error)) (Result, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return errorResult(), fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if account.Blocked {
		return Result{
			Status:  StatusBlocked,
			Message: "Your account is blocked from claiming cards.",
		}, nil
	}

	card, err := lookup(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			return notFoundResult(), nil
		}
		return errorResult(), fmt.Errorf("card lookup failed: %w", err)
	}

	// Inactive and soft-deleted cards answer exactly like missing ones,
	// so the response does not reveal whether a code exists.
	if !card.Claimable() {
		return notFoundResult(), nil
	}

	if card.OwnedBy(accountID) {
		// Idempotent no-op success: no write, no log entry.
		return Result{
			Status:  StatusAlreadyOwner,
			Message: "This card is already in your collection.",
			Card:    card,
		}, nil
	}
	if card.OwnerID != nil {
		return ownedByOtherResult(card), nil
	}

	won, err := s.cards.ClaimCard(ctx, card.ID, accountID, string(source))
	if err != nil {
		return errorResult(), fmt.Errorf("claim write failed for card %d: %w", card.ID, err)
	}
	if won {
		slog.Info("Card claimed",
			slog.Int64("card_id", card.ID),
			slog.Int64("account_id", accountID),
			slog.String("source", string(source)),
		)
		return Result{
			Status:  StatusClaimed,
			Message: fmt.Sprintf("%s is now yours.", card.Name),
			Card:    card,
		}, nil
	}

	// Lost the race, or the card changed under us. Re-read to say which.
	return s.classifyLostClaim(ctx, accountID, lookup)
}

func (s *Service) classifyLostClaim(ctx context.Context, accountID int64, lookup func(context.Context) (*models.Card, error)) (Result, error) {
	card, err := lookup(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			return notFoundResult(), nil
		}
		return errorResult(), fmt.Errorf("post-claim lookup failed: %w", err)
	}

	switch {
	case !card.Claimable():
		return notFoundResult(), nil
	case card.OwnedBy(accountID):
		// A parallel request from the same account won; still a no-op
		// success for this caller.
		return Result{
			Status:  StatusAlreadyOwner,
			Message: "This card is already in your collection.",
			Card:    card,
		}, nil
	case card.OwnerID != nil:
		return ownedByOtherResult(card), nil
	default:
		return errorResult(), fmt.Errorf("claim on card %d failed without a visible cause", card.ID)
	}
}

// Release relinquishes ownership, returning the card to the wild. The
// redemption status survives release: history does not reset.
func (s *Service) Release(ctx context.Context, cardID, accountID int64) (ReleaseResult, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ReleaseResult{Status: ReleaseNotFound, Message: "Card not found."}, nil
		}
		return ReleaseResult{Status: ReleaseError, Message: "Something went wrong."}, fmt.Errorf("card lookup failed: %w", err)
	}
	if card.DeletedAt != nil {
		return ReleaseResult{Status: ReleaseNotFound, Message: "Card not found."}, nil
	}

	if !card.OwnedBy(accountID) {
		return ReleaseResult{
			Status:  ReleaseUnauthorized,
			Message: "You do not own this card.",
		}, nil
	}
	if card.RedemptionStatus == models.RedemptionPending {
		return pendingLockResult(), nil
	}

	ok, err := s.cards.ReleaseCard(ctx, cardID, accountID)
	if err != nil {
		return ReleaseResult{Status: ReleaseError, Message: "Something went wrong."}, fmt.Errorf("release write failed for card %d: %w", cardID, err)
	}
	if ok {
		slog.Info("Card released",
			slog.Int64("card_id", cardID),
			slog.Int64("account_id", accountID),
		)
		return ReleaseResult{
			Status:  ReleaseOK,
			Message: fmt.Sprintf("%s has been released.", card.Name),
		}, nil
	}

	// The conditional write matched nothing: either a redemption went
	// pending or ownership moved since the read.
	card, err = s.cards.GetByID(ctx, cardID)
	if err == nil && card.OwnedBy(accountID) && card.RedemptionStatus == models.RedemptionPending {
		return pendingLockResult(), nil
	}
	return ReleaseResult{
		Status:  ReleaseUnauthorized,
		Message: "You do not own this card.",
	}, nil
}

func errorResult() Result {
	return Result{Status: StatusError, Message: "Something went wrong. Please try again."}
}

func notFoundResult() Result {
	return Result{Status: StatusNotFound, Message: "No card matches that code."}
}

func ownedByOtherResult(card *models.Card) Result {
	return Result{
		Status:  StatusOwnedByOther,
		Message: "This card has already been claimed by another collector.",
		Card:    card,
	}
}

func pendingLockResult() ReleaseResult {
	return ReleaseResult{
		Status:  ReleasePendingLock,
		Message: "This card has a redemption under review and cannot be released.",
	}
}
