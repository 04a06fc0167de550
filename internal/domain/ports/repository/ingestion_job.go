package repository

import (
	"context"

	"scalable-rag-engine/internal/domain/model"
)

// -----------------------------
// Ingestion jobs
// -----------------------------

type IngestionJobRepository interface {
	// CreateJob inserts a PENDING job for url. It returns domain.ErrConflict when
	// the url already has a job; the unique constraint is the race guard.
	CreateJob(ctx context.Context, tx Tx, url string) (*model.IngestionJob, error)
	FindByURL(ctx context.Context, tx Tx, url string) (*model.IngestionJob, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.IngestionJob, error)

	// UpdateStatus applies status only when the current status allows it and
	// reports whether a row matched. lastError is stored with FAILED.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.JobStatus, lastError string) (bool, error)

	// Delete removes a job. Only used to undo a submission whose enqueue failed.
	Delete(ctx context.Context, tx Tx, id string) error
}
