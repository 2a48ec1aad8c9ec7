package redemption

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
)

var errNotFound = sql.ErrNoRows

// fakeStore backs all three engine interfaces with one in-memory state so
// the transactional contracts (all-or-nothing submit, single-shot resolve,
// ledger credit) can be asserted end to end.
type fakeStore struct {
	mu          sync.Mutex
	cards       map[int64]*models.Card
	accounts    map[int64]*models.Account
	redemptions map[int64]*models.Redemption
	ledger      []models.TimeLedgerEntry
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:       make(map[int64]*models.Card),
		accounts:    make(map[int64]*models.Account),
		redemptions: make(map[int64]*models.Redemption),
		nextID:      1,
	}
}

func (s *fakeStore) addAccount(id int64) *models.Account {
	account := &models.Account{ID: id, Email: fmt.Sprintf("user%d@example.com", id)}
	s.accounts[id] = account
	return account
}

func (s *fakeStore) addCard(id, value int64, owner *int64, status models.RedemptionStatus) *models.Card {
	card := &models.Card{
		ID:               id,
		Code:             fmt.Sprintf("tv-%04d", id),
		ClaimToken:       fmt.Sprintf("token-%d", id),
		Name:             fmt.Sprintf("Card %d", id),
		TimeValue:        value,
		OwnerID:          owner,
		RedemptionStatus: status,
		IsActive:         true,
	}
	s.cards[id] = card
	return card
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *fakeStore) GetByIDs(_ context.Context, ids []int64) ([]*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Card, 0, len(ids))
	for _, id := range ids {
		if card, ok := s.cards[id]; ok {
			copied := *card
			out = append(out, &copied)
		}
	}
	return out, nil
}

type accountGetter struct{ s *fakeStore }

func (g accountGetter) GetByID(_ context.Context, id int64) (*models.Account, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	account, ok := g.s.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	return account, nil
}

type receiptStore struct{ s *fakeStore }

func (r receiptStore) GetByID(_ context.Context, id int64) (*models.Redemption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	redemption, ok := r.s.redemptions[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *redemption
	return &copied, nil
}

func (r receiptStore) SubmitCards(_ context.Context, accountID int64, cards []*models.Card) (*models.Redemption, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Re-verify under the lock; any miss rolls the whole batch back.
	for _, card := range cards {
		live, ok := r.s.cards[card.ID]
		if !ok || live.DeletedAt != nil || !live.IsActive ||
			live.OwnerID == nil || *live.OwnerID != accountID ||
			(live.RedemptionStatus != models.RedemptionNone && live.RedemptionStatus != models.RedemptionRejected) {
			return nil, card.ID, nil
		}
	}

	var total int64
	redemption := &models.Redemption{
		ID:          r.s.nextID,
		ReceiptCode: fmt.Sprintf("receipt-%d", r.s.nextID),
		AccountID:   accountID,
		Status:      models.RedemptionPending,
	}
	r.s.nextID++
	for _, card := range cards {
		live := r.s.cards[card.ID]
		live.RedemptionStatus = models.RedemptionPending
		total += live.TimeValue
		redemption.Cards = append(redemption.Cards, &models.RedemptionCard{
			RedemptionID: redemption.ID,
			CardID:       card.ID,
			Value:        live.TimeValue,
		})
	}
	redemption.TotalValue = total
	r.s.redemptions[redemption.ID] = redemption
	return redemption, 0, nil
}

func (r receiptStore) Resolve(_ context.Context, redemptionID int64, decision models.RedemptionDecision, adminID int64, notes string) (*models.Redemption, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	redemption, ok := r.s.redemptions[redemptionID]
	if !ok || redemption.Status != models.RedemptionPending {
		return nil, false, nil
	}

	cardStatus := models.RedemptionRejected
	if decision == models.DecisionCredit {
		cardStatus = models.RedemptionCredited
		redemption.Status = models.RedemptionCredited
		r.s.ledger = append(r.s.ledger, models.TimeLedgerEntry{
			AccountID:    redemption.AccountID,
			Amount:       redemption.TotalValue,
			RedemptionID: &redemption.ID,
		})
		r.s.accounts[redemption.AccountID].TimeBalance += redemption.TotalValue
	} else {
		redemption.Status = models.RedemptionRejected
	}
	now := time.Now()
	redemption.ReviewedBy = &adminID
	redemption.ReviewedAt = &now
	redemption.AdminNotes = notes
	for _, rc := range redemption.Cards {
		r.s.cards[rc.CardID].RedemptionStatus = cardStatus
	}

	copied := *redemption
	return &copied, true, nil
}

func newTestService(s *fakeStore) *Service {
	return NewService(s, accountGetter{s}, receiptStore{s})
}

func TestSubmit(t *testing.T) {
	owner := int64(1)

	tests := []struct {
		name       string
		setup      func(*fakeStore)
		cardIDs    []int64
		want       SubmitStatus
		wantReason RefusalReason
	}{
		{
			name: "eligible cards submit",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionNone)
				s.addCard(2, 50, &owner, models.RedemptionNone)
			},
			cardIDs: []int64{1, 2},
			want:    SubmitOK,
		},
		{
			name:    "empty set refused",
			setup:   func(s *fakeStore) {},
			cardIDs: nil,
			want:    SubmitRefused,
		},
		{
			name: "missing card refuses batch",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionNone)
			},
			cardIDs:    []int64{1, 99},
			want:       SubmitRefused,
			wantReason: RefusalNotFound,
		},
		{
			name: "unowned card refuses batch",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionNone)
				s.addCard(2, 50, nil, models.RedemptionNone)
			},
			cardIDs:    []int64{1, 2},
			want:       SubmitRefused,
			wantReason: RefusalNotOwner,
		},
		{
			name: "pending card refuses batch",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionPending)
			},
			cardIDs:    []int64{1},
			want:       SubmitRefused,
			wantReason: RefusalAlreadyPending,
		},
		{
			name: "credited card refuses batch",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionCredited)
			},
			cardIDs:    []int64{1},
			want:       SubmitRefused,
			wantReason: RefusalAlreadyCredited,
		},
		{
			name: "inactive card refuses batch",
			setup: func(s *fakeStore) {
				card := s.addCard(1, 100, &owner, models.RedemptionNone)
				card.IsActive = false
			},
			cardIDs:    []int64{1},
			want:       SubmitRefused,
			wantReason: RefusalInactive,
		},
		{
			name: "rejected card may resubmit",
			setup: func(s *fakeStore) {
				s.addCard(1, 100, &owner, models.RedemptionRejected)
			},
			cardIDs: []int64{1},
			want:    SubmitOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.addAccount(1)
			tt.setup(store)
			svc := newTestService(store)

			result, err := svc.Submit(context.Background(), tt.cardIDs, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.want {
				t.Fatalf("status = %q, want %q", result.Status, tt.want)
			}
			if tt.wantReason != "" {
				if result.Refusal == nil {
					t.Fatal("expected a refusal, got none")
				}
				if result.Refusal.Reason != tt.wantReason {
					t.Errorf("refusal reason = %q, want %q", result.Refusal.Reason, tt.wantReason)
				}
			}
		})
	}
}

// A refused batch must leave every card untouched, including the
// eligible ones.
func TestSubmitAllOrNothing(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addCard(1, 100, &owner, models.RedemptionNone)
	store.addCard(2, 50, &owner, models.RedemptionCredited)
	svc := newTestService(store)

	result, err := svc.Submit(context.Background(), []int64{1, 2}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != SubmitRefused {
		t.Fatalf("status = %q, want %q", result.Status, SubmitRefused)
	}
	if store.cards[1].RedemptionStatus != models.RedemptionNone {
		t.Errorf("card 1 status = %q, want untouched", store.cards[1].RedemptionStatus)
	}
	if len(store.redemptions) != 0 {
		t.Errorf("redemptions created = %d, want 0", len(store.redemptions))
	}
}

func TestSubmitBlockedAccount(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1).Blocked = true
	store.addCard(1, 100, &owner, models.RedemptionNone)
	svc := newTestService(store)

	result, err := svc.Submit(context.Background(), []int64{1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != SubmitBlocked {
		t.Errorf("status = %q, want %q", result.Status, SubmitBlocked)
	}
}

func TestSubmitSnapshotsValues(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addCard(1, 100, &owner, models.RedemptionNone)
	store.addCard(2, 50, &owner, models.RedemptionNone)
	svc := newTestService(store)

	result, err := svc.Submit(context.Background(), []int64{1, 2, 1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != SubmitOK {
		t.Fatalf("status = %q, want %q", result.Status, SubmitOK)
	}
	if result.Redemption.TotalValue != 150 {
		t.Errorf("total value = %d, want 150", result.Redemption.TotalValue)
	}
	// Duplicate ids collapse before submission.
	if len(result.Redemption.Cards) != 2 {
		t.Errorf("receipt cards = %d, want 2", len(result.Redemption.Cards))
	}

	// Catalog change after submission must not move the receipt.
	store.cards[1].TimeValue = 9000
	got, err := receiptStore{store}.GetByID(context.Background(), result.Redemption.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalValue != 150 {
		t.Errorf("total value after catalog change = %d, want 150", got.TotalValue)
	}
}

func TestReviewCredit(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addAccount(9)
	store.addCard(1, 100, &owner, models.RedemptionNone)
	svc := newTestService(store)

	submitted, err := svc.Submit(context.Background(), []int64{1}, 1)
	if err != nil || submitted.Status != SubmitOK {
		t.Fatalf("submit failed: status=%v err=%v", submitted.Status, err)
	}

	result, err := svc.Review(context.Background(), submitted.Redemption.ID, models.DecisionCredit, 9, "looks good")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReviewCredited {
		t.Fatalf("status = %q, want %q", result.Status, ReviewCredited)
	}
	if store.accounts[1].TimeBalance != 100 {
		t.Errorf("balance = %d, want 100", store.accounts[1].TimeBalance)
	}
	if len(store.ledger) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(store.ledger))
	}
	if store.cards[1].RedemptionStatus != models.RedemptionCredited {
		t.Errorf("card status = %q, want %q", store.cards[1].RedemptionStatus, models.RedemptionCredited)
	}
}

func TestReviewRejectAllowsResubmit(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addCard(1, 100, &owner, models.RedemptionNone)
	svc := newTestService(store)

	submitted, _ := svc.Submit(context.Background(), []int64{1}, 1)
	result, err := svc.Review(context.Background(), submitted.Redemption.ID, models.DecisionReject, 9, "blurry photo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReviewRejected {
		t.Fatalf("status = %q, want %q", result.Status, ReviewRejected)
	}
	if store.accounts[1].TimeBalance != 0 {
		t.Errorf("balance = %d, want 0 after rejection", store.accounts[1].TimeBalance)
	}

	resubmitted, err := svc.Submit(context.Background(), []int64{1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resubmitted.Status != SubmitOK {
		t.Errorf("resubmit status = %q, want %q", resubmitted.Status, SubmitOK)
	}
}

// The credit must land at most once no matter how many admins race on
// the same receipt.
func TestReviewIdempotent(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addCard(1, 100, &owner, models.RedemptionNone)
	svc := newTestService(store)

	submitted, _ := svc.Submit(context.Background(), []int64{1}, 1)

	const reviewers = 8
	var wg sync.WaitGroup
	results := make([]ReviewResult, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Review(context.Background(), submitted.Redemption.ID, models.DecisionCredit, int64(i+10), "")
			if err != nil {
				t.Errorf("reviewer %d: unexpected error: %v", i, err)
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		switch r.Status {
		case ReviewCredited:
			credited++
		case ReviewAlreadyResolved:
		default:
			t.Errorf("unexpected status %q", r.Status)
		}
	}
	if credited != 1 {
		t.Errorf("credited results = %d, want exactly 1", credited)
	}
	if store.accounts[1].TimeBalance != 100 {
		t.Errorf("balance = %d, want 100 (credited once)", store.accounts[1].TimeBalance)
	}
	if len(store.ledger) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(store.ledger))
	}
}

func TestReviewMissingRedemption(t *testing.T) {
	store := newFakeStore()
	store.addAccount(1)
	svc := newTestService(store)

	result, err := svc.Review(context.Background(), 404, models.DecisionCredit, 9, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReviewNotFound {
		t.Errorf("status = %q, want %q", result.Status, ReviewNotFound)
	}
}

func TestReviewUnknownDecision(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.Review(context.Background(), 1, models.RedemptionDecision("approve"), 9, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReviewError {
		t.Errorf("status = %q, want %q", result.Status, ReviewError)
	}
}

// Full lifecycle: claim value flows to balance exactly once, and the
// credited card can never produce TIME again.
func TestCreditedCardNeverCreditsTwice(t *testing.T) {
	owner := int64(1)
	store := newFakeStore()
	store.addAccount(1)
	store.addCard(1, 250, &owner, models.RedemptionNone)
	svc := newTestService(store)

	submitted, _ := svc.Submit(context.Background(), []int64{1}, 1)
	if _, err := svc.Review(context.Background(), submitted.Redemption.ID, models.DecisionCredit, 9, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := svc.Submit(context.Background(), []int64{1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != SubmitRefused || again.Refusal == nil || again.Refusal.Reason != RefusalAlreadyCredited {
		t.Errorf("resubmit = %+v, want refusal with reason %q", again, RefusalAlreadyCredited)
	}
	if store.accounts[1].TimeBalance != 250 {
		t.Errorf("balance = %d, want 250", store.accounts[1].TimeBalance)
	}
}
