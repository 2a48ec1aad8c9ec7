package models

// ClaimRequest carries the raw scan payload: a full QR URL, a short link,
// or a bare card code typed by hand.
type ClaimRequest struct {
	Payload string `json:"payload"`
}

type SubmitRedemptionRequest struct {
	CardIDs []int64 `json:"card_ids"`
}

type ReviewRedemptionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type UpdateCardRequest struct {
	Name      *string `json:"name,omitempty"`
	Era       *string `json:"era,omitempty"`
	Rarity    *int    `json:"rarity,omitempty"`
	ImagePath *string `json:"image_path,omitempty"`
	TimeValue *int64  `json:"time_value,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

type BulkOperationRequest struct {
	Operation string  `json:"operation"`
	CardIDs   []int64 `json:"card_ids"`
}

type CreateTicketRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SetBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}
