package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/config"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/domain/ports/repository"
	"scalable-rag-engine/internal/infra/adapters/ai"
	"scalable-rag-engine/internal/infra/chunker"
	pg "scalable-rag-engine/internal/infra/db/postgres"
	"scalable-rag-engine/internal/infra/fetcher"
	red "scalable-rag-engine/internal/infra/redis"
	"scalable-rag-engine/internal/usecase"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg   *config.Config
	log   *zerolog.Logger
	pool  *pgxpool.Pool
	redis *red.Client
	queue *red.TaskQueue
	jobs  repository.IngestionJobRepository

	submission usecase.SubmissionUseCase
	ingestion  usecase.IngestionUseCase
	query      usecase.QueryUseCase
}

type appOptions struct {
	// withIndex wires the embedder, the chunk index and the pipeline.
	withIndex bool
	// withGenerator wires the language model and the query engine.
	withGenerator bool
	migrate       bool
}

func newApp(ctx context.Context, cfg *config.Config, log *zerolog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log}

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool
	if opts.migrate {
		if err := pg.Migrate(ctx, pool, cfg.Index.Dimension); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = rc
	a.queue = red.NewTaskQueue(rc, cfg.Queue.Name, cfg.Queue.PollInterval, log)

	a.jobs = pg.NewJobRepoCacheDecorator(pg.NewIngestionJobRepo(pool, cfg.Worker.ProcessingLease), rc, 0)
	a.submission = usecase.NewSubmissionUseCase(a.jobs, a.queue, log)

	if !opts.withIndex && !opts.withGenerator {
		return a, nil
	}

	embedder, err := ai.NewEmbedder(ctx, cfg.AI, cfg.Index.Dimension)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	index := pg.NewChunkIndex(pool, pg.NewTxManager(pool), embedder)

	if opts.withIndex {
		fetch := fetcher.New(fetcher.Options{
			Timeout:      cfg.Fetcher.Timeout,
			MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
			Retry:        fetcher.RetryPolicy{Backoff: cfg.Fetcher.Backoff, Retryable: fetcher.IsRetryable},
		}, log)
		split := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
		var tokens adapter.TokenCounter = ai.NewTokenCounter(ai.DefaultEncoding, log)
		a.ingestion = usecase.NewIngestionUseCase(a.jobs, fetch, split, index, tokens, log)
	}

	if opts.withGenerator {
		gen, err := ai.NewGenerator(ctx, cfg.AI)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("generator: %w", err)
		}
		log.Info().Str("provider", gen.Provider()).Str("model", gen.Model()).Msg("generator ready")
		a.query = usecase.NewQueryUseCase(index, gen, cfg.Index.TopK, log)
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
