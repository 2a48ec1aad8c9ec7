package models

import (
	"time"
)

// APIResponse is the standard envelope for every JSON endpoint.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func NewSuccessResponse(data interface{}, message string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func NewErrorResponse(code, message string, details map[string]string) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	}
}

// ClaimResponse is the body for claim attempts: the status tag is consumed
// identically by the scanner app and the web client.
type ClaimResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Card    interface{} `json:"card,omitempty"`
}

type BulkOperationResponse struct {
	Operation string `json:"operation"`
	Requested int    `json:"requested"`
	Affected  int64  `json:"affected"`
}
