package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/repository"
)

var _ repository.IngestionJobRepository = (*ingestionJobRepo)(nil)

type ingestionJobRepo struct {
	pool *pgxpool.Pool
	// lease is how long a PROCESSING claim stays exclusive; <= 0 never expires.
	lease time.Duration
}

func NewIngestionJobRepo(pool *pgxpool.Pool, lease time.Duration) *ingestionJobRepo {
	return &ingestionJobRepo{pool: pool, lease: lease}
}

func (r *ingestionJobRepo) CreateJob(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	job := &model.IngestionJob{
		ID:     uuid.NewString(),
		URL:    url,
		Status: model.JobStatusPending,
	}
	const q = `
INSERT INTO ingestion_jobs (id, url, status, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING created_at, updated_at;`

	row, err := pickRow(ctx, r.pool, tx, q, job.ID, job.URL, string(job.Status))
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert ingestion job: %w", err)
	}
	return job, nil
}

const selectJob = `
SELECT id, url, status, COALESCE(last_error, ''), created_at, updated_at
FROM ingestion_jobs`

func (r *ingestionJobRepo) FindByURL(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	return r.findOne(ctx, tx, selectJob+` WHERE url = $1;`, url)
}

func (r *ingestionJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
	return r.findOne(ctx, tx, selectJob+` WHERE id = $1;`, id)
}

func (r *ingestionJobRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.IngestionJob, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func scanJob(row pgx.Row) (*model.IngestionJob, error) {
	var (
		job    model.IngestionJob
		status string
	)
	if err := row.Scan(&job.ID, &job.URL, &status, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}

// UpdateStatus is a single conditional UPDATE; the WHERE clause encodes the
// allowed transitions:
//
//	PENDING    -> PROCESSING
//	PROCESSING -> PROCESSING  (claim older than the lease)
//	PROCESSING -> COMPLETED | FAILED
func (r *ingestionJobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, lastError string) (bool, error) {
	if !status.Valid() || status == model.JobStatusPending {
		return false, fmt.Errorf("%w: cannot move a job to %q", domain.ErrInvalidArgument, status)
	}
	if status != model.JobStatusFailed {
		lastError = ""
	}
	const q = `
UPDATE ingestion_jobs
SET status = $2::text, last_error = NULLIF($3::text, ''), updated_at = now()
WHERE id = $1
  AND (
        ($2::text = 'PROCESSING' AND (
              status = 'PENDING'
           OR (status = 'PROCESSING' AND $4::double precision > 0
               AND updated_at < now() - make_interval(secs => $4::double precision))
        ))
     OR ($2::text IN ('COMPLETED', 'FAILED') AND status = 'PROCESSING')
  );`

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), lastError, r.lease.Seconds())
	if err != nil {
		return false, fmt.Errorf("update ingestion job status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ingestionJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM ingestion_jobs WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete ingestion job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
