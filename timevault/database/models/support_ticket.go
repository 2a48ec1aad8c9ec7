package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

type SupportTicket struct {
	bun.BaseModel `bun:"table:support_tickets,alias:st"`

	ID        int64        `bun:"id,pk,autoincrement"`
	AccountID int64        `bun:"account_id,notnull"`
	Subject   string       `bun:"subject,notnull"`
	Body      string       `bun:"body,notnull"`
	Status    TicketStatus `bun:"status,notnull,default:'open'"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
