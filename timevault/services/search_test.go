package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/timevault/timevault/timevault/database/models"
)

type fakeSearcher struct {
	cards []*models.Card
}

func (f *fakeSearcher) GetByID(_ context.Context, id int64) (*models.Card, error) {
	for _, card := range f.cards {
		if card.ID == id {
			return card, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSearcher) SearchByCodePrefix(_ context.Context, prefix string, limit int) ([]*models.Card, error) {
	var out []*models.Card
	for _, card := range f.cards {
		if strings.HasPrefix(strings.ToLower(card.Code), strings.ToLower(prefix)) {
			out = append(out, card)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSearcher) GetAll(_ context.Context) ([]*models.Card, error) {
	return f.cards, nil
}

func catalog() *fakeSearcher {
	return &fakeSearcher{cards: []*models.Card{
		{ID: 1, Code: "tv-0001", Name: "Midnight Ace"},
		{ID: 2, Code: "tv-0002", Name: "Midnight Queen"},
		{ID: 3, Code: "xx-0099", Name: "Solar King"},
		{ID: 42, Code: "tv-0042", Name: "Lunar Jack"},
	}}
}

func TestSearch(t *testing.T) {
	svc := NewSearchService(catalog())

	tests := []struct {
		name    string
		query   string
		wantIDs []int64
	}{
		{
			name:    "numeric query matches id first",
			query:   "42",
			wantIDs: []int64{42},
		},
		{
			name:    "code prefix",
			query:   "tv-000",
			wantIDs: []int64{1, 2},
		},
		{
			name:    "empty query",
			query:   "   ",
			wantIDs: nil,
		},
		{
			name:    "no match",
			query:   "zzzzzz",
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Search(context.Background(), tt.query, 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("result %d: id = %d, want %d", i, got[i].ID, want)
				}
			}
		})
	}
}

func TestSearchFuzzyName(t *testing.T) {
	svc := NewSearchService(catalog())

	got, err := svc.Search(context.Background(), "midnight", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := make(map[int64]bool, len(got))
	for _, card := range got {
		found[card.ID] = true
	}
	if len(got) != 2 || !found[1] || !found[2] {
		t.Fatalf("got %d results %v, want cards 1 and 2", len(got), found)
	}
}

func TestSearchDeduplicates(t *testing.T) {
	svc := NewSearchService(catalog())

	// "tv-0042" hits both the code prefix path and the fuzzy path; the
	// card must appear once.
	got, err := svc.Search(context.Background(), "tv-0042", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 42 {
		t.Fatalf("got %+v, want exactly card 42", got)
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	svc := NewSearchService(catalog())

	got, err := svc.Search(context.Background(), "tv", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
}
