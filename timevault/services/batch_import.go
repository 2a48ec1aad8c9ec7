package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/timevault/timevault/timevault/database/models"
	"github.com/timevault/timevault/timevault/database/repositories"
	"golang.org/x/sync/errgroup"
)

const imageCheckWorkers = 8

type ImageChecker interface {
	ImageExists(ctx context.Context, imagePath string) bool
}

// BatchImportService turns a print batch definition into card rows:
// one row per physical card, each with a fresh unguessable claim token.
type BatchImportService struct {
	cards   repositories.CardRepository
	batches repositories.BatchRepository
	images  ImageChecker
}

func NewBatchImportService(cards repositories.CardRepository, batches repositories.BatchRepository, images ImageChecker) *BatchImportService {
	return &BatchImportService{
		cards:   cards,
		batches: batches,
		images:  images,
	}
}

type BatchCardSpec struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Era         string `json:"era"`
	Suit        string `json:"suit"`
	Rank        string `json:"rank"`
	Rarity      int    `json:"rarity"`
	ImagePath   string `json:"image_path"`
	TraderValue int64  `json:"trader_value"`
	TimeValue   int64  `json:"time_value"`
}

type BatchImportRequest struct {
	Name      string          `json:"name"`
	Note      string          `json:"note"`
	CreatedBy int64           `json:"-"`
	Cards     []BatchCardSpec `json:"cards"`
}

func (r *BatchImportRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("batch name is required")
	}
	if len(r.Cards) == 0 {
		return fmt.Errorf("batch must contain at least one card")
	}
	seen := make(map[string]struct{}, len(r.Cards))
	for i, spec := range r.Cards {
		code := strings.ToLower(strings.TrimSpace(spec.Code))
		if code == "" {
			return fmt.Errorf("card %d: code is required", i)
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("card %d: duplicate code %q in batch", i, spec.Code)
		}
		seen[code] = struct{}{}
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("card %d: name is required", i)
		}
	}
	return nil
}

func (s *BatchImportService) Import(ctx context.Context, req *BatchImportRequest) (*models.PrintBatch, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	batch := &models.PrintBatch{
		Name:      req.Name,
		Note:      req.Note,
		CreatedBy: req.CreatedBy,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, 0, fmt.Errorf("failed to create print batch: %w", err)
	}

	s.warnMissingImages(ctx, req.Cards)

	cards := make([]*models.Card, 0, len(req.Cards))
	for _, spec := range req.Cards {
		cards = append(cards, &models.Card{
			Code:             spec.Code,
			ClaimToken:       uuid.NewString(),
			Name:             spec.Name,
			Era:              spec.Era,
			Suit:             spec.Suit,
			Rank:             spec.Rank,
			Rarity:           spec.Rarity,
			ImagePath:        spec.ImagePath,
			TraderValue:      spec.TraderValue,
			TimeValue:        spec.TimeValue,
			RedemptionStatus: models.RedemptionNone,
			IsActive:         true,
			BatchID:          &batch.ID,
		})
	}

	created, err := s.cards.BulkCreate(ctx, cards)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to insert batch cards: %w", err)
	}

	if err := s.batches.SetCardCount(ctx, batch.ID, created); err != nil {
		slog.Warn("Failed to record batch card count",
			slog.Int64("batch_id", batch.ID),
			slog.Any("error", err))
	}
	batch.CardCount = created

	slog.Info("Print batch imported",
		slog.Int64("batch_id", batch.ID),
		slog.String("name", batch.Name),
		slog.Int("cards", created))

	return batch, created, nil
}

// warnMissingImages fans out HEAD checks against the artwork bucket.
// Missing artwork is a warning, not an import failure.
func (s *BatchImportService) warnMissingImages(ctx context.Context, specs []BatchCardSpec) {
	if s.images == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageCheckWorkers)

	for _, spec := range specs {
		spec := spec
		if spec.ImagePath == "" {
			continue
		}
		g.Go(func() error {
			if !s.images.ImageExists(gctx, spec.ImagePath) {
				slog.Warn("Card artwork missing from bucket",
					slog.String("code", spec.Code),
					slog.String("image_path", spec.ImagePath))
			}
			return nil
		})
	}
	_ = g.Wait()
}
