package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PrintBatch struct {
	bun.BaseModel `bun:"table:print_batches,alias:pb"`

	ID        int64  `bun:"id,pk,autoincrement"`
	Name      string `bun:"name,notnull"`
	Note      string `bun:"note"`
	CardCount int    `bun:"card_count,notnull,default:0"`
	CreatedBy int64  `bun:"created_by,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
