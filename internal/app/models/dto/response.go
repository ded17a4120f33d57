package dto

import (
	"time"

	"github.com/itsbooking/portal/internal/pkg/helpers"
)

// APIResponse is the envelope of every JSON response except the raw booking toggles
type APIResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewSuccessResponse wraps data in a successful envelope
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// PagedResponse is a page of items together with its pagination block
type PagedResponse struct {
	Items      interface{}            `json:"items"`
	Pagination helpers.PaginationInfo `json:"pagination"`
}

// SuccessResponse represents a plain message response
type SuccessResponse struct {
	Message string `json:"message"`
}
