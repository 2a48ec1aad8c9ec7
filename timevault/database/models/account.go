package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Email    string `bun:"email,notnull,unique"`
	Username string `bun:"username,notnull"`

	// APIToken is issued by the identity provider integration and maps a
	// bearer token to this account.
	APIToken string `bun:"api_token,notnull,unique"`

	// Blocked accounts may not claim or submit cards. Existing ownership
	// is unaffected.
	Blocked bool `bun:"blocked,notnull,default:false"`
	IsAdmin bool `bun:"is_admin,notnull,default:false"`

	TimeBalance int64 `bun:"time_balance,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
