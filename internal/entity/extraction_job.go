package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionJob is the audit row of one extraction request.
type ExtractionJob struct {
	ID           uuid.UUID  `json:"id"`
	ProfileID    uuid.UUID  `json:"profile_id"`
	Status       string     `json:"status"`
	Provider     string     `json:"provider"`
	ModelName    *string    `json:"model_name,omitempty"`
	ImageCount   int        `json:"image_count"`
	RawResponse  *string    `json:"raw_response,omitempty"`
	ErrorCode    *string    `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
