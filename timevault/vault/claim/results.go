package claim

import "github.com/timevault/timevault/timevault/database/models"

// Status is the caller-visible outcome tag, used identically by every
// client surface. Conflict outcomes are expected business results, not
// errors: the error return is reserved for infrastructure failures.
type Status string

const (
	StatusClaimed      Status = "claimed"
	StatusAlreadyOwner Status = "already_owner"
	StatusOwnedByOther Status = "owned_by_other"
	StatusNotFound     Status = "not_found"
	StatusBlocked      Status = "blocked"
	StatusError        Status = "error"
)

// Source records which identifier kind a claim came through; it lands in
// the activity log metadata.
type Source string

const (
	SourceToken Source = "token"
	SourceCode  Source = "code"
)

type Result struct {
	Status  Status
	Message string
	Card    *models.Card
}

type ReleaseStatus string

const (
	ReleaseOK           ReleaseStatus = "released"
	ReleaseUnauthorized ReleaseStatus = "unauthorized"
	ReleasePendingLock  ReleaseStatus = "redemption_pending"
	ReleaseNotFound     ReleaseStatus = "not_found"
	ReleaseError        ReleaseStatus = "error"
)

type ReleaseResult struct {
	Status  ReleaseStatus
	Message string
}
