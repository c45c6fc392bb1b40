package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// Reading represents a confirmed vitals record for data transfer between layers.
type Reading struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	// MeasuredAt is when the vitals were taken, supplied by the caller.
	MeasuredAt time.Time `json:"measured_at"`
	vitals.Measurements
	MachineNotes    []string      `json:"machine_notes"`
	Notes           *string       `json:"notes,omitempty"`
	ExtractionJobID *uuid.UUID    `json:"extraction_job_id,omitempty"`
	SourceImages    []SourceImage `json:"source_images"`
	CreatedAt       time.Time     `json:"created_at"`
}
