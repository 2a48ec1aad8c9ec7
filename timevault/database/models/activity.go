package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ActivityAction string

const (
	ActionClaimed             ActivityAction = "claimed"
	ActionReleased            ActivityAction = "released"
	ActionRedemptionSubmitted ActivityAction = "redemption_submitted"
	ActionRedemptionCredited  ActivityAction = "redemption_credited"
	ActionRedemptionRejected  ActivityAction = "redemption_rejected"
)

// ActivityLogEntry is append-only. It is always inserted in the same
// transaction as the state change it records; there is no update or delete
// path anywhere in the codebase.
type ActivityLogEntry struct {
	bun.BaseModel `bun:"table:activity_log,alias:al"`

	ID              int64          `bun:"id,pk,autoincrement"`
	CardID          int64          `bun:"card_id,notnull"`
	AccountID       int64          `bun:"account_id,notnull"`
	Action          ActivityAction `bun:"action,notnull"`
	PreviousOwnerID *int64         `bun:"previous_owner_id"`

	// Metadata carries free-form context: claim source, credited amount,
	// admin notes.
	Metadata map[string]any `bun:"metadata,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
