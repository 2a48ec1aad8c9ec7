package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RedemptionStatus tracks a card's position in the redemption lifecycle.
// It is a property of the physical card: a credited card stays credited
// across release and re-claim, so TIME can never be collected twice for
// the same card.
type RedemptionStatus string

const (
	RedemptionNone     RedemptionStatus = "none"
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionCredited RedemptionStatus = "credited"
	RedemptionRejected RedemptionStatus = "rejected"
)

type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID int64 `bun:"id,pk,autoincrement"`

	// Code is the human-readable identifier printed on the physical card.
	// ClaimToken is the unguessable secret embedded in the QR payload and
	// is the preferred claim key; it is never exposed through search.
	Code       string `bun:"code,notnull,unique"`
	ClaimToken string `bun:"claim_token,notnull,unique"`

	Name   string `bun:"name,notnull"`
	Era    string `bun:"era"`
	Suit   string `bun:"suit"`
	Rank   string `bun:"rank"`
	Rarity int    `bun:"rarity,notnull,default:1"`

	ImagePath string `bun:"image_path"`

	TraderValue int64 `bun:"trader_value,notnull,default:0"`
	TimeValue   int64 `bun:"time_value,notnull,default:0"`

	// OwnerID is the authoritative ownership field. The activity log is an
	// audit projection and is never consulted for ownership decisions.
	OwnerID          *int64           `bun:"owner_id"`
	RedemptionStatus RedemptionStatus `bun:"redemption_status,notnull,default:'none'"`

	IsActive  bool       `bun:"is_active,notnull,default:true"`
	DeletedAt *time.Time `bun:"deleted_at"`

	BatchID *int64 `bun:"batch_id"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Claimable reports whether the card can appear as a claim target at all.
// Inactive and soft-deleted cards are indistinguishable from nonexistent
// ones to callers.
func (c *Card) Claimable() bool {
	return c.IsActive && c.DeletedAt == nil
}

func (c *Card) OwnedBy(accountID int64) bool {
	return c.OwnerID != nil && *c.OwnerID == accountID
}

// CardSummary is the caller-facing shape attached to claim results and
// collection listings.
type CardSummary struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Era         string `json:"era"`
	Suit        string `json:"suit"`
	Rank        string `json:"rank"`
	Rarity      int    `json:"rarity"`
	ImageURL    string `json:"image_url,omitempty"`
	TraderValue int64  `json:"trader_value"`
	TimeValue   int64  `json:"time_value"`
}

func NewCardSummary(card *Card, imageURL string) *CardSummary {
	return &CardSummary{
		ID:          card.ID,
		Code:        card.Code,
		Name:        card.Name,
		Era:         card.Era,
		Suit:        card.Suit,
		Rank:        card.Rank,
		Rarity:      card.Rarity,
		ImageURL:    imageURL,
		TraderValue: card.TraderValue,
		TimeValue:   card.TimeValue,
	}
}
