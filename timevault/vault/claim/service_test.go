package claim

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timevault/timevault/timevault/database/models"
)

// errNotFound matches what repositories.IsNotFound recognizes.
var errNotFound = sql.ErrNoRows

func testTime() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

// fakeCardStore mimics the repository's conditional writes with a mutex,
// so the race semantics under test match the SQL guards.
type fakeCardStore struct {
	mu      sync.Mutex
	cards   map[int64]*models.Card
	byToken map[string]int64
	byCode  map[string]int64
	log     []models.ActivityLogEntry
}

func newFakeCardStore(cards ...*models.Card) *fakeCardStore {
	s := &fakeCardStore{
		cards:   make(map[int64]*models.Card),
		byToken: make(map[string]int64),
		byCode:  make(map[string]int64),
	}
	for _, c := range cards {
		s.cards[c.ID] = c
		s.byToken[c.ClaimToken] = c.ID
		s.byCode[c.Code] = c.ID
	}
	return s
}

func (s *fakeCardStore) GetByID(_ context.Context, id int64) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *fakeCardStore) GetByCode(_ context.Context, code string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, errNotFound
	}
	copied := *s.cards[id]
	return &copied, nil
}

func (s *fakeCardStore) GetByClaimToken(_ context.Context, token string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, errNotFound
	}
	copied := *s.cards[id]
	return &copied, nil
}

func (s *fakeCardStore) ClaimCard(_ context.Context, cardID, accountID int64, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok || card.OwnerID != nil || !card.IsActive || card.DeletedAt != nil {
		return false, nil
	}
	owner := accountID
	card.OwnerID = &owner
	s.log = append(s.log, models.ActivityLogEntry{
		CardID:    cardID,
		AccountID: accountID,
		Action:    models.ActionClaimed,
		Metadata:  map[string]any{"source": source},
	})
	return true, nil
}

func (s *fakeCardStore) ReleaseCard(_ context.Context, cardID, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok || card.OwnerID == nil || *card.OwnerID != ownerID || card.RedemptionStatus == models.RedemptionPending {
		return false, nil
	}
	prev := *card.OwnerID
	card.OwnerID = nil
	s.log = append(s.log, models.ActivityLogEntry{
		CardID:          cardID,
		AccountID:       ownerID,
		Action:          models.ActionReleased,
		PreviousOwnerID: &prev,
	})
	return true, nil
}

func (s *fakeCardStore) entries(action models.ActivityAction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.log {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fakeAccountStore struct {
	accounts map[int64]*models.Account
}

func (s *fakeAccountStore) GetByID(_ context.Context, id int64) (*models.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	return account, nil
}

func accounts(ids ...int64) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[int64]*models.Account)}
	for _, id := range ids {
		s.accounts[id] = &models.Account{ID: id, Email: fmt.Sprintf("user%d@example.com", id)}
	}
	return s
}

func testCard(id int64) *models.Card {
	return &models.Card{
		ID:               id,
		Code:             fmt.Sprintf("tv-%04d", id),
		ClaimToken:       fmt.Sprintf("token-%d", id),
		Name:             fmt.Sprintf("Card %d", id),
		TimeValue:        100,
		RedemptionStatus: models.RedemptionNone,
		IsActive:         true,
	}
}

func TestClaimByToken(t *testing.T) {
	owner := int64(7)

	tests := []struct {
		name   string
		setup  func(*models.Card)
		caller int64
		want   Status
	}{
		{
			name:   "fresh card",
			setup:  func(c *models.Card) {},
			caller: 1,
			want:   StatusClaimed,
		},
		{
			name:   "already owned by caller",
			setup:  func(c *models.Card) { c.OwnerID = &owner },
			caller: 7,
			want:   StatusAlreadyOwner,
		},
		{
			name:   "owned by someone else",
			setup:  func(c *models.Card) { c.OwnerID = &owner },
			caller: 1,
			want:   StatusOwnedByOther,
		},
		{
			name:   "inactive card looks missing",
			setup:  func(c *models.Card) { c.IsActive = false },
			caller: 1,
			want:   StatusNotFound,
		},
		{
			name: "soft deleted card looks missing",
			setup: func(c *models.Card) {
				now := testTime()
				c.DeletedAt = &now
			},
			caller: 1,
			want:   StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := testCard(1)
			tt.setup(card)
			store := newFakeCardStore(card)
			svc := NewService(store, accounts(1, 7))

			result, err := svc.ClaimByToken(context.Background(), card.ClaimToken, tt.caller)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("status = %q, want %q", result.Status, tt.want)
			}
		})
	}
}

func TestClaimUnknownToken(t *testing.T) {
	svc := NewService(newFakeCardStore(), accounts(1))

	result, err := svc.ClaimByToken(context.Background(), "no-such-token", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNotFound {
		t.Errorf("status = %q, want %q", result.Status, StatusNotFound)
	}
}

func TestClaimBlockedAccount(t *testing.T) {
	card := testCard(1)
	store := newFakeCardStore(card)
	accs := accounts(1)
	accs.accounts[1].Blocked = true
	svc := NewService(store, accs)

	result, err := svc.ClaimByToken(context.Background(), card.ClaimToken, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusBlocked {
		t.Errorf("status = %q, want %q", result.Status, StatusBlocked)
	}
	if got := store.entries(models.ActionClaimed); got != 0 {
		t.Errorf("blocked claim wrote %d log entries, want 0", got)
	}
}

func TestClaimByCode(t *testing.T) {
	card := testCard(1)
	store := newFakeCardStore(card)
	svc := NewService(store, accounts(1))

	result, err := svc.ClaimByCode(context.Background(), card.Code, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusClaimed {
		t.Errorf("status = %q, want %q", result.Status, StatusClaimed)
	}
}

// Two claims for the same card race; exactly one may win and exactly one
// claimed entry may land in the log.
func TestConcurrentClaimSingleWinner(t *testing.T) {
	const claimers = 16

	card := testCard(1)
	store := newFakeCardStore(card)

	ids := make([]int64, claimers)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	accs := accounts(ids...)
	svc := NewService(store, accs)

	var wg sync.WaitGroup
	results := make([]Result, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.ClaimByToken(context.Background(), card.ClaimToken, int64(i+1))
			if err != nil {
				t.Errorf("claimer %d: unexpected error: %v", i+1, err)
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		switch r.Status {
		case StatusClaimed:
			winners++
		case StatusOwnedByOther, StatusAlreadyOwner:
		default:
			t.Errorf("unexpected status %q", r.Status)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
	if got := store.entries(models.ActionClaimed); got != 1 {
		t.Errorf("claimed log entries = %d, want 1", got)
	}
}

func TestRepeatClaimIsIdempotent(t *testing.T) {
	card := testCard(1)
	store := newFakeCardStore(card)
	svc := NewService(store, accounts(1))

	for i, want := range []Status{StatusClaimed, StatusAlreadyOwner, StatusAlreadyOwner} {
		result, err := svc.ClaimByToken(context.Background(), card.ClaimToken, 1)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if result.Status != want {
			t.Errorf("attempt %d: status = %q, want %q", i, result.Status, want)
		}
	}
	if got := store.entries(models.ActionClaimed); got != 1 {
		t.Errorf("claimed log entries = %d, want 1", got)
	}
}

func TestRelease(t *testing.T) {
	owner := int64(1)

	tests := []struct {
		name   string
		setup  func(*models.Card)
		caller int64
		want   ReleaseStatus
	}{
		{
			name:   "owner releases",
			setup:  func(c *models.Card) { c.OwnerID = &owner },
			caller: 1,
			want:   ReleaseOK,
		},
		{
			name:   "non-owner refused",
			setup:  func(c *models.Card) { c.OwnerID = &owner },
			caller: 2,
			want:   ReleaseUnauthorized,
		},
		{
			name:   "unclaimed card refused",
			setup:  func(c *models.Card) {},
			caller: 1,
			want:   ReleaseUnauthorized,
		},
		{
			name: "pending redemption locks the card",
			setup: func(c *models.Card) {
				c.OwnerID = &owner
				c.RedemptionStatus = models.RedemptionPending
			},
			caller: 1,
			want:   ReleasePendingLock,
		},
		{
			name: "rejected status does not lock",
			setup: func(c *models.Card) {
				c.OwnerID = &owner
				c.RedemptionStatus = models.RedemptionRejected
			},
			caller: 1,
			want:   ReleaseOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := testCard(1)
			tt.setup(card)
			store := newFakeCardStore(card)
			svc := NewService(store, accounts(1, 2))

			result, err := svc.Release(context.Background(), card.ID, tt.caller)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("status = %q, want %q", result.Status, tt.want)
			}
		})
	}
}

func TestReleaseMissingCard(t *testing.T) {
	svc := NewService(newFakeCardStore(), accounts(1))

	result, err := svc.Release(context.Background(), 99, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReleaseNotFound {
		t.Errorf("status = %q, want %q", result.Status, ReleaseNotFound)
	}
}

// A credited card keeps its credited status through release and a later
// claim by someone else.
func TestCreditedStatusSurvivesRelease(t *testing.T) {
	owner := int64(1)
	card := testCard(1)
	card.OwnerID = &owner
	card.RedemptionStatus = models.RedemptionCredited
	store := newFakeCardStore(card)
	svc := NewService(store, accounts(1, 2))

	result, err := svc.Release(context.Background(), card.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReleaseOK {
		t.Fatalf("release status = %q, want %q", result.Status, ReleaseOK)
	}

	claimed, err := svc.ClaimByToken(context.Background(), card.ClaimToken, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.Status != StatusClaimed {
		t.Fatalf("claim status = %q, want %q", claimed.Status, StatusClaimed)
	}

	got, err := store.GetByID(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RedemptionStatus != models.RedemptionCredited {
		t.Errorf("redemption status = %q, want %q after release and re-claim", got.RedemptionStatus, models.RedemptionCredited)
	}
}
