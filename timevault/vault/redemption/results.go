package redemption

import "github.com/timevault/timevault/timevault/database/models"

type SubmitStatus string

const (
	SubmitOK      SubmitStatus = "submitted"
	SubmitRefused SubmitStatus = "refused"
	SubmitBlocked SubmitStatus = "blocked"
	SubmitError   SubmitStatus = "error"
)

// RefusalReason names why a specific card made the batch ineligible.
// Submission is all-or-nothing: one ineligible card refuses the batch.
type RefusalReason string

const (
	RefusalNotFound        RefusalReason = "not_found"
	RefusalNotOwner        RefusalReason = "not_owner"
	RefusalAlreadyPending  RefusalReason = "already_pending"
	RefusalAlreadyCredited RefusalReason = "already_credited"
	RefusalInactive        RefusalReason = "inactive"
)

type CardRefusal struct {
	CardID int64         `json:"card_id"`
	Reason RefusalReason `json:"reason"`
}

type SubmitResult struct {
	Status     SubmitStatus
	Message    string
	Redemption *models.Redemption
	Refusal    *CardRefusal
}

type ReviewStatus string

const (
	ReviewCredited        ReviewStatus = "credited"
	ReviewRejected        ReviewStatus = "rejected"
	ReviewAlreadyResolved ReviewStatus = "already_resolved"
	ReviewNotFound        ReviewStatus = "not_found"
	ReviewError           ReviewStatus = "error"
)

type ReviewResult struct {
	Status     ReviewStatus
	Message    string
	Redemption *models.Redemption
}
