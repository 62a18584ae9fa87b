package api

import "trackarr/internal/models"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WebhookResponse is returned for every accepted webhook delivery.
// Media servers retry on failure codes, so the body says what happened
// while the status stays 200.
type WebhookResponse struct {
	Status string `json:"status"`
}

// CreateMappingRequest creates or replaces an admin ID override
type CreateMappingRequest struct {
	FromSource models.Source `json:"from_source" binding:"required"`
	FromID     string        `json:"from_id" binding:"required"`
	ToSource   models.Source `json:"to_source" binding:"required"`
	ToID       string        `json:"to_id" binding:"required"`
	Confirm    bool          `json:"confirm"`
}
