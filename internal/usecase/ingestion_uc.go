// File: internal/usecase/ingestion_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/domain/ports/repository"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
)

// Compile-time check
var _ IngestionUseCase = (*ingestionUC)(nil)

// FailureKind classifies why Process did not complete a job.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureFetch        FailureKind = "fetch"
	FailureEmptyContent FailureKind = "empty_content"
	FailureIndex        FailureKind = "index"
	FailureStore        FailureKind = "store"
	// The claim write itself failed; the job was not touched.
	FailureClaim FailureKind = "claim"
	// The claim did not match; see classify.
	FailureNotFound  FailureKind = "not_found"
	FailureBusy      FailureKind = "busy"
	FailureDuplicate FailureKind = "duplicate"
)

// IngestResult is the outcome of one pipeline run.
type IngestResult struct {
	JobID  string
	Chunks int
	Err    error
	Kind   FailureKind
}

func (r IngestResult) OK() bool { return r.Kind == FailureNone }

type IngestionUseCase interface {
	// Process drives a job from PENDING to COMPLETED or FAILED. It never
	// panics on anomalies; they are reported through the result.
	Process(ctx context.Context, jobID, url string) IngestResult
}

type ingestionUC struct {
	jobs    repository.IngestionJobRepository
	fetcher adapter.ContentFetcher
	chunker adapter.Chunker
	index   adapter.IndexStore
	tokens  adapter.TokenCounter
	log     *zerolog.Logger
}

// NewIngestionUseCase wires the pipeline. tokens may be nil.
func NewIngestionUseCase(
	jobs repository.IngestionJobRepository,
	fetcher adapter.ContentFetcher,
	chunker adapter.Chunker,
	index adapter.IndexStore,
	tokens adapter.TokenCounter,
	logger *zerolog.Logger,
) *ingestionUC {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "ingestion").Logger()
	return &ingestionUC{jobs: jobs, fetcher: fetcher, chunker: chunker, index: index, tokens: tokens, log: &l}
}

func (u *ingestionUC) Process(ctx context.Context, jobID, url string) IngestResult {
	defer logging.TraceDuration(u.log, "IngestionUC.Process")()
	start := time.Now()
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, u.log).With().Str("url", url).Logger()

	claimed, err := u.jobs.UpdateStatus(ctx, nil, jobID, model.JobStatusProcessing, "")
	if err != nil {
		log.Error().Err(err).Msg("failed to claim job")
		metrics.IncIngestJob("store_error")
		return IngestResult{JobID: jobID, Kind: FailureClaim, Err: fmt.Errorf("claim job: %w", err)}
	}
	if !claimed {
		return u.classify(ctx, &log, jobID)
	}
	log.Info().Msg("processing job")

	text, err := u.fetcher.Fetch(ctx, url)
	if err != nil {
		return u.fail(ctx, &log, jobID, FailureFetch, err, start)
	}
	if strings.TrimSpace(text) == "" {
		return u.fail(ctx, &log, jobID, FailureEmptyContent, domain.ErrEmptyContent, start)
	}

	texts, err := u.chunker.Split(text)
	if err != nil {
		return u.fail(ctx, &log, jobID, FailureEmptyContent, fmt.Errorf("split content: %w", err), start)
	}
	if len(texts) == 0 {
		return u.fail(ctx, &log, jobID, FailureEmptyContent, domain.ErrEmptyContent, start)
	}

	chunks := model.NewChunks(url, texts)
	ids := make([]string, len(chunks))
	docs := make([]string, len(chunks))
	metas := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		ids[i], docs[i], metas[i] = c.ID, c.Text, c.Metadata
		if u.tokens != nil {
			metrics.ObserveChunkTokens(u.tokens.Count(c.Text))
		}
	}
	log.Debug().Int("chunks", len(chunks)).Msg("content split")

	if err := u.index.Upsert(ctx, ids, docs, metas); err != nil {
		var ie *domain.IndexError
		if !errors.As(err, &ie) {
			err = &domain.IndexError{Op: "upsert", Err: err}
		}
		return u.fail(ctx, &log, jobID, FailureIndex, err, start)
	}

	done, err := u.jobs.UpdateStatus(ctx, nil, jobID, model.JobStatusCompleted, "")
	if err != nil {
		metrics.IncIngestJob("store_error")
		return u.fail(ctx, &log, jobID, FailureStore, fmt.Errorf("complete job: %w", err), start)
	}
	if !done {
		// another worker took over an expired claim
		return u.classify(ctx, &log, jobID)
	}

	metrics.IncIngestJob(string(model.JobStatusCompleted))
	metrics.AddIngestChunks(len(chunks))
	metrics.ObserveIngestDuration(string(model.JobStatusCompleted), time.Since(start).Seconds())
	log.Info().Int("chunks", len(chunks)).Dur("took", time.Since(start)).Msg("job completed")
	return IngestResult{JobID: jobID, Chunks: len(chunks)}
}

// fail records FAILED with a context that survives cancellation of ctx.
func (u *ingestionUC) fail(ctx context.Context, log *zerolog.Logger, jobID string, kind FailureKind, cause error, start time.Time) IngestResult {
	log.Error().Err(cause).Str("kind", string(kind)).Msg("ingestion failed")

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	ok, err := u.jobs.UpdateStatus(dctx, nil, jobID, model.JobStatusFailed, cause.Error())
	switch {
	case err != nil:
		log.Error().Err(err).Msg("failed to mark job failed")
	case !ok:
		log.Warn().Msg("job left PROCESSING before it could be marked failed")
	}

	metrics.IncIngestJob(string(model.JobStatusFailed))
	metrics.ObserveIngestDuration(string(model.JobStatusFailed), time.Since(start).Seconds())
	return IngestResult{JobID: jobID, Kind: kind, Err: cause}
}

// classify explains a claim that did not match by reading the job.
func (u *ingestionUC) classify(ctx context.Context, log *zerolog.Logger, jobID string) IngestResult {
	job, err := u.jobs.FindByID(ctx, nil, jobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("job not found, skipping task")
		metrics.IncIngestAnomaly(string(FailureNotFound))
		return IngestResult{JobID: jobID, Kind: FailureNotFound, Err: fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)}
	case err != nil:
		log.Error().Err(err).Msg("failed to read job")
		return IngestResult{JobID: jobID, Kind: FailureStore, Err: fmt.Errorf("read job: %w", err)}
	case job.Status.Terminal():
		log.Info().Str("status", string(job.Status)).Msg("job already finished, skipping task")
		metrics.IncIngestAnomaly(string(FailureDuplicate))
		return IngestResult{JobID: jobID, Kind: FailureDuplicate, Err: fmt.Errorf("job %s is already %s", jobID, job.Status)}
	default:
		log.Info().Str("status", string(job.Status)).Msg("job is claimed by another worker")
		metrics.IncIngestAnomaly(string(FailureBusy))
		return IngestResult{JobID: jobID, Kind: FailureBusy, Err: fmt.Errorf("job %s is %s elsewhere", jobID, job.Status)}
	}
}
