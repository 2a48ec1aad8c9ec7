package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RedemptionDecision string

const (
	DecisionCredit RedemptionDecision = "credit"
	DecisionReject RedemptionDecision = "reject"
)

// Redemption is the receipt created when an owner submits cards for TIME.
// TotalValue is snapshotted at submission time so later catalog changes do
// not retroactively alter a pending receipt.
type Redemption struct {
	bun.BaseModel `bun:"table:redemptions,alias:r"`

	ID          int64            `bun:"id,pk,autoincrement"`
	ReceiptCode string           `bun:"receipt_code,notnull,unique"`
	AccountID   int64            `bun:"account_id,notnull"`
	Status      RedemptionStatus `bun:"status,notnull,default:'pending'"`
	TotalValue  int64            `bun:"total_value,notnull"`

	AdminNotes string     `bun:"admin_notes"`
	ReviewedBy *int64     `bun:"reviewed_by"`
	ReviewedAt *time.Time `bun:"reviewed_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	Cards []*RedemptionCard `bun:"rel:has-many,join:id=redemption_id"`
}

type RedemptionCard struct {
	bun.BaseModel `bun:"table:redemption_cards,alias:rc"`

	ID           int64 `bun:"id,pk,autoincrement"`
	RedemptionID int64 `bun:"redemption_id,notnull"`
	CardID       int64 `bun:"card_id,notnull"`

	// Value is the card's time_value at submission time.
	Value int64 `bun:"value,notnull"`
}
