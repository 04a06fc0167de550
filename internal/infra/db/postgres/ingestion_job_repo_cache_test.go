//go:build !integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgconn"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/repository"
)

func TestJobRepoCacheDecorator_CachesTerminalJobs(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := &mockInnerJobRepo{
		FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
			calls++
			return &model.IngestionJob{ID: id, URL: "https://a.example", Status: model.JobStatusCompleted}, nil
		},
		FindByURLFunc: func(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
			t.Fatal("FindByURL should be served from cache")
			return nil, nil
		},
	}
	cache := newMockRedisClient()
	repo := NewJobRepoCacheDecorator(inner, cache, 0)

	for i := 0; i < 3; i++ {
		job, err := repo.FindByID(ctx, nil, "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != model.JobStatusCompleted {
			t.Errorf("unexpected status %s", job.Status)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 database read, got %d", calls)
	}
	// the URL key is warmed by the ID read
	if _, err := repo.FindByURL(ctx, nil, "https://a.example"); err != nil {
		t.Fatalf("expected cached url lookup, got %v", err)
	}
}

func TestJobRepoCacheDecorator_SkipsActiveJobs(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := &mockInnerJobRepo{
		FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
			calls++
			return &model.IngestionJob{ID: id, URL: "u", Status: model.JobStatusProcessing}, nil
		},
	}
	cache := newMockRedisClient()
	repo := NewJobRepoCacheDecorator(inner, cache, 0)

	_, _ = repo.FindByID(ctx, nil, "job-2")
	_, _ = repo.FindByID(ctx, nil, "job-2")
	if calls != 2 {
		t.Errorf("expected active job to bypass cache, got %d reads", calls)
	}
	if cache.has(jobKeyByID("job-2")) {
		t.Error("expected no cache entry for an active job")
	}
}

func TestJobRepoCacheDecorator_PropagatesNotFound(t *testing.T) {
	inner := &mockInnerJobRepo{
		FindByURLFunc: func(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
			return nil, domain.ErrNotFound
		},
	}
	repo := NewJobRepoCacheDecorator(inner, newMockRedisClient(), 0)
	if _, err := repo.FindByURL(context.Background(), nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRepoCacheDecorator_DeleteClearsKeys(t *testing.T) {
	ctx := context.Background()
	deleted := false
	inner := &mockInnerJobRepo{
		FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
			return &model.IngestionJob{ID: id, URL: "u", Status: model.JobStatusFailed}, nil
		},
		DeleteFunc: func(ctx context.Context, tx repository.Tx, id string) error {
			deleted = true
			return nil
		},
	}
	cache := newMockRedisClient()
	repo := NewJobRepoCacheDecorator(inner, cache, 0)
	_, _ = repo.FindByID(ctx, nil, "job-3")
	if !cache.has(jobKeyByID("job-3")) {
		t.Fatal("expected terminal job to be cached")
	}
	if err := repo.Delete(ctx, nil, "job-3"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !deleted {
		t.Error("expected inner delete to run")
	}
	if cache.has(jobKeyByID("job-3")) || cache.has(jobKeyByURL("u")) {
		t.Error("expected cache keys to be removed")
	}
}

func TestRenderSchema(t *testing.T) {
	ddl, err := RenderSchema(384)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(ddl, "vector(384)") {
		t.Error("expected embedding dimension to be rendered")
	}
	if !strings.Contains(ddl, "ingestion_jobs_url_key UNIQUE (url)") {
		t.Error("expected unique url constraint")
	}
	if _, err := RenderSchema(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(dup) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("expected foreign key violation not to match")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("expected plain error not to match")
	}
}

func TestGetExecutor_RejectsUnknownHandle(t *testing.T) {
	if _, err := getExecutor(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without pool, got %v", err)
	}
	if _, err := getExecutor(nil, "not a tx"); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Errorf("expected ErrInvalidExecContext, got %v", err)
	}
}
