package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition mirrors the conditional update enforced by the job store.
// PROCESSING -> PROCESSING is only legal for a stale claim, which the store
// decides; here it is reported as allowed.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch to {
	case JobStatusProcessing:
		return s == JobStatusPending || s == JobStatusProcessing
	case JobStatusCompleted, JobStatusFailed:
		return s == JobStatusProcessing
	}
	return false
}

// IngestionJob tracks the ingestion of a single URL. URL is unique for the
// lifetime of the system.
type IngestionJob struct {
	ID        string
	URL       string
	Status    JobStatus
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
