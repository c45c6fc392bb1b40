package constants

// JobStatus is the canonical status for rows in extraction_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // normalizing, archiving or waiting on recognition
	JobStatusExtracted JobStatus = "EXTRACTED" // validated reading handed to review
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure, see error_code
	JobStatusCanceled  JobStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s != JobStatusRunning
}
