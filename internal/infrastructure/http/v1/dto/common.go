// Package dto holds the JSON request and response bodies of the v1 API.
package dto

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ItemsResponse wraps an unpaged list.
type ItemsResponse struct {
	Items any `json:"items"`
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SetDeletionMarkRequest sets or clears the soft-delete flag.
type SetDeletionMarkRequest struct {
	Marked bool `json:"marked"`
}

// Versioned carries the version the client last saw. Zero skips the check.
type Versioned struct {
	Version int `json:"version" binding:"min=0"`
}

// ExpectedVersion implements the handlers' version check.
func (v Versioned) ExpectedVersion() int { return v.Version }
