package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TimeLedgerEntry records every TIME balance change. Append-only;
// corrections are made with compensating entries, never edits.
type TimeLedgerEntry struct {
	bun.BaseModel `bun:"table:time_ledger,alias:tl"`

	ID           int64  `bun:"id,pk,autoincrement"`
	AccountID    int64  `bun:"account_id,notnull"`
	Amount       int64  `bun:"amount,notnull"`
	Reason       string `bun:"reason,notnull"`
	RedemptionID *int64 `bun:"redemption_id"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
