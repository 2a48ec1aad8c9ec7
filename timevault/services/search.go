package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/timevault/timevault/timevault/database/models"
)

const defaultSearchLimit = 25

// SearchCards is the admin console card lookup: exact id, code prefix,
// then fuzzy name ranking over the catalog. Claim tokens are deliberately
// not searchable through any path here.
type CardSearcher interface {
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	SearchByCodePrefix(ctx context.Context, prefix string, limit int) ([]*models.Card, error)
	GetAll(ctx context.Context) ([]*models.Card, error)
}

type SearchService struct {
	cards CardSearcher
}

func NewSearchService(cards CardSearcher) *SearchService {
	return &SearchService{cards: cards}
}

func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]*models.Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results := make([]*models.Card, 0, limit)
	seen := make(map[int64]struct{})
	add := func(card *models.Card) {
		if _, ok := seen[card.ID]; ok || len(results) >= limit {
			return
		}
		seen[card.ID] = struct{}{}
		results = append(results, card)
	}

	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		if card, err := s.cards.GetByID(ctx, id); err == nil {
			add(card)
		}
	}

	prefixed, err := s.cards.SearchByCodePrefix(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, card := range prefixed {
		add(card)
	}
	if len(results) >= limit {
		return results, nil
	}

	all, err := s.cards.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, match := range fuzzy.FindFrom(query, cardNames(all)) {
		add(all[match.Index])
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

type cardNames []*models.Card

func (c cardNames) String(i int) string { return c[i].Name }
func (c cardNames) Len() int            { return len(c) }
