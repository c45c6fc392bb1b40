package entity

import (
	"time"

	"github.com/google/uuid"
)

// SourceImage is an archived photo. ReadingID stays nil until a reading built
// from it is confirmed, and forever if the draft is discarded.
type SourceImage struct {
	ID           uuid.UUID  `json:"id"`
	ProfileID    uuid.UUID  `json:"profile_id"`
	ReadingID    *uuid.UUID `json:"reading_id,omitempty"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	StorageRef   string     `json:"storage_ref"`
	OriginalName string     `json:"original_name"`
	MediaType    string     `json:"media_type"`
	SizeBytes    int64      `json:"size_bytes"`
	Position     int        `json:"position"`
	ContentHash  string     `json:"content_hash"`
	CreatedAt    time.Time  `json:"created_at"`
}
