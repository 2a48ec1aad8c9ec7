package services

import (
	"context"
	"testing"

	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
)

type fakeCardRepo struct {
	repositories.CardRepository
	created []*models.Card
}

func (f *fakeCardRepo) BulkCreate(_ context.Context, cards []*models.Card) (int, error) {
	f.created = append(f.created, cards...)
	return len(cards), nil
}

type fakeBatchRepo struct {
	repositories.BatchRepository
	batch     *models.PrintBatch
	cardCount int
}

func (f *fakeBatchRepo) Create(_ context.Context, batch *models.PrintBatch) error {
	batch.ID = 1
	f.batch = batch
	return nil
}

func (f *fakeBatchRepo) SetCardCount(_ context.Context, _ int64, count int) error {
	f.cardCount = count
	return nil
}

type allImagesExist struct{}

func (allImagesExist) ImageExists(_ context.Context, _ string) bool { return true }

func TestBatchImport(t *testing.T) {
	cards := &fakeCardRepo{}
	batches := &fakeBatchRepo{}
	svc := NewBatchImportService(cards, batches, allImagesExist{})

	req := &BatchImportRequest{
		Name:      "Spring 2026",
		CreatedBy: 9,
		Cards: []BatchCardSpec{
			{Code: "tv-1001", Name: "Dawn Ace", TimeValue: 100, ImagePath: "dawn-ace.png"},
			{Code: "tv-1002", Name: "Dawn Queen", TimeValue: 150},
		},
	}

	batch, created, err := svc.Import(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
	if batch.CardCount != 2 || batches.cardCount != 2 {
		t.Errorf("card count = %d/%d, want 2", batch.CardCount, batches.cardCount)
	}

	tokens := make(map[string]bool)
	for _, card := range cards.created {
		if card.ClaimToken == "" {
			t.Errorf("card %s has no claim token", card.Code)
		}
		if tokens[card.ClaimToken] {
			t.Errorf("duplicate claim token %q", card.ClaimToken)
		}
		tokens[card.ClaimToken] = true

		if !card.IsActive {
			t.Errorf("card %s not active", card.Code)
		}
		if card.RedemptionStatus != models.RedemptionNone {
			t.Errorf("card %s redemption status = %q, want %q", card.Code, card.RedemptionStatus, models.RedemptionNone)
		}
		if card.BatchID == nil || *card.BatchID != batch.ID {
			t.Errorf("card %s not linked to batch", card.Code)
		}
	}
}

func TestBatchImportValidation(t *testing.T) {
	tests := []struct {
		name string
		req  BatchImportRequest
	}{
		{
			name: "missing batch name",
			req: BatchImportRequest{
				Cards: []BatchCardSpec{{Code: "tv-1", Name: "A"}},
			},
		},
		{
			name: "no cards",
			req:  BatchImportRequest{Name: "Empty"},
		},
		{
			name: "duplicate codes",
			req: BatchImportRequest{
				Name: "Dupes",
				Cards: []BatchCardSpec{
					{Code: "tv-1", Name: "A"},
					{Code: "TV-1", Name: "B"},
				},
			},
		},
		{
			name: "card without name",
			req: BatchImportRequest{
				Name:  "Anon",
				Cards: []BatchCardSpec{{Code: "tv-1"}},
			},
		},
	}

	svc := NewBatchImportService(&fakeCardRepo{}, &fakeBatchRepo{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Import(context.Background(), &tt.req); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
