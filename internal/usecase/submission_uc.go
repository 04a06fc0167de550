// File: internal/usecase/submission_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/domain/ports/repository"
	"scalable-rag-engine/internal/infra/logging"
)

// Compile-time check
var _ SubmissionUseCase = (*submissionUC)(nil)

// SubmissionUseCase registers URLs for ingestion and reports job state.
type SubmissionUseCase interface {
	// Submit creates a PENDING job for url and schedules it. A URL that was
	// submitted before yields *domain.ConflictError.
	Submit(ctx context.Context, url string) (*model.IngestionJob, error)
	Status(ctx context.Context, jobID string) (*model.IngestionJob, error)
}

type submissionUC struct {
	jobs  repository.IngestionJobRepository
	tasks adapter.TaskDispatcher
	log   *zerolog.Logger
}

func NewSubmissionUseCase(jobs repository.IngestionJobRepository, tasks adapter.TaskDispatcher, logger *zerolog.Logger) *submissionUC {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "submission").Logger()
	return &submissionUC{jobs: jobs, tasks: tasks, log: &l}
}

func (u *submissionUC) Submit(ctx context.Context, rawURL string) (*model.IngestionJob, error) {
	defer logging.TraceDuration(u.log, "SubmissionUC.Submit")()
	log := logging.With(ctx, u.log)

	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := u.jobs.FindByURL(ctx, nil, target)
	switch {
	case err == nil:
		return nil, &domain.ConflictError{JobID: existing.ID, Status: string(existing.Status)}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup url: %w", err)
	}

	job, err := u.jobs.CreateJob(ctx, nil, target)
	if errors.Is(err, domain.ErrConflict) {
		// lost the race to a concurrent submission
		existing, ferr := u.jobs.FindByURL(ctx, nil, target)
		if ferr != nil {
			return nil, fmt.Errorf("lookup url after conflict: %w", domain.ErrConflict)
		}
		return nil, &domain.ConflictError{JobID: existing.ID, Status: string(existing.Status)}
	}
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	taskID, err := u.tasks.Enqueue(ctx, model.ProcessURLTask, job.ID, target)
	if err != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if derr := u.jobs.Delete(dctx, nil, job.ID); derr != nil {
			log.Error().Err(derr).Str("job_id", job.ID).Msg("failed to remove unscheduled job")
		}
		return nil, fmt.Errorf("schedule job: %w", err)
	}

	log.Info().Str("job_id", job.ID).Str("task_id", taskID).Str("url", target).Msg("ingestion job scheduled")
	return job, nil
}

func (u *submissionUC) Status(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.jobs.FindByID(ctx, nil, jobID)
}

// NormalizeURL accepts absolute http(s) URLs with a host. Scheme and host are
// lower-cased and an empty path becomes "/", so trivially different spellings
// share one dedup key.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url must use http or https", domain.ErrInvalidArgument)
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: url must have a host", domain.ErrInvalidArgument)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
