//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/repository"
)

func TestIngestionJobRepo_CreateAndFind(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, 15*time.Minute)

	job, err := repo.CreateJob(ctx, nil, "https://example.com/a")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != model.JobStatusPending || job.ID == "" {
		t.Fatalf("unexpected job %+v", job)
	}

	byURL, err := repo.FindByURL(ctx, nil, "https://example.com/a")
	if err != nil || byURL.ID != job.ID {
		t.Fatalf("FindByURL: %+v, %v", byURL, err)
	}
	byID, err := repo.FindByID(ctx, nil, job.ID)
	if err != nil || byID.URL != job.URL {
		t.Fatalf("FindByID: %+v, %v", byID, err)
	}

	if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIngestionJobRepo_DuplicateURL(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, 15*time.Minute)

	if _, err := repo.CreateJob(ctx, nil, "https://example.com/dup"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := repo.CreateJob(ctx, nil, "https://example.com/dup"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIngestionJobRepo_ConcurrentCreateSingleWinner(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, 15*time.Minute)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateJob(ctx, nil, "https://example.com/race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || conflicts != n-1 {
		t.Errorf("expected 1 winner and %d conflicts, got %d and %d", n-1, created, conflicts)
	}
}

func TestIngestionJobRepo_StatusTransitions(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, 15*time.Minute)
	job, err := repo.CreateJob(ctx, nil, "https://example.com/t")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	steps := []struct {
		to   model.JobStatus
		want bool
	}{
		{model.JobStatusCompleted, false}, // PENDING cannot finish directly
		{model.JobStatusProcessing, true},
		{model.JobStatusProcessing, false}, // claim is still fresh
		{model.JobStatusFailed, true},
		{model.JobStatusProcessing, false},
		{model.JobStatusCompleted, false},
	}
	for i, s := range steps {
		ok, err := repo.UpdateStatus(ctx, nil, job.ID, s.to, "fetch failed")
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if ok != s.want {
			t.Errorf("step %d -> %s: got %v, want %v", i, s.to, ok, s.want)
		}
	}

	got, _ := repo.FindByID(ctx, nil, job.ID)
	if got.Status != model.JobStatusFailed || got.LastError != "fetch failed" {
		t.Errorf("unexpected final job %+v", got)
	}

	if _, err := repo.UpdateStatus(ctx, nil, job.ID, model.JobStatusPending, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for PENDING, got %v", err)
	}
}

func TestIngestionJobRepo_ExpiredLeaseReclaim(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, time.Second)
	job, _ := repo.CreateJob(ctx, nil, "https://example.com/lease")
	if ok, _ := repo.UpdateStatus(ctx, nil, job.ID, model.JobStatusProcessing, ""); !ok {
		t.Fatal("expected first claim")
	}
	if _, err := testPool.Exec(ctx, `UPDATE ingestion_jobs SET updated_at = now() - interval '1 minute' WHERE id = $1`, job.ID); err != nil {
		t.Fatalf("age claim: %v", err)
	}
	if ok, _ := repo.UpdateStatus(ctx, nil, job.ID, model.JobStatusProcessing, ""); !ok {
		t.Error("expected stale claim to be re-taken")
	}

	noLease := NewIngestionJobRepo(testPool, 0)
	_, _ = testPool.Exec(ctx, `UPDATE ingestion_jobs SET updated_at = now() - interval '1 day' WHERE id = $1`, job.ID)
	if ok, _ := noLease.UpdateStatus(ctx, nil, job.ID, model.JobStatusProcessing, ""); ok {
		t.Error("expected re-claim to be disabled without a lease")
	}
}

func TestIngestionJobRepo_DeleteInsideTx(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewIngestionJobRepo(testPool, 0)
	tm := NewTxManager(testPool)

	job, _ := repo.CreateJob(ctx, nil, "https://example.com/del")
	rollback := errors.New("rollback")
	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := repo.Delete(ctx, tx, job.ID); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if _, err := repo.FindByID(ctx, nil, job.ID); err != nil {
		t.Fatalf("expected job to survive rolled back delete, got %v", err)
	}
	if err := repo.Delete(ctx, nil, job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, nil, job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	// the URL is free again
	if _, err := repo.CreateJob(ctx, nil, "https://example.com/del"); err != nil {
		t.Errorf("expected resubmission after delete, got %v", err)
	}
}

func TestChunkIndex_UpsertAndQuery(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	idx := NewChunkIndex(testPool, NewTxManager(testPool), hashEmbedder{})

	url := "https://example.com/doc"
	chunks := model.NewChunks(url, []string{
		"the owl hunts at night",
		"tomatoes grow in summer gardens",
	})
	ids, texts, metas := splitChunks(chunks)
	if err := idx.Upsert(ctx, ids, texts, metas); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// same ids again overwrite, never duplicate
	if err := idx.Upsert(ctx, ids, texts, metas); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	var n int
	_ = testPool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n)
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	res, err := idx.Query(ctx, "the owl hunts at night", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Documents) != 1 || res.Documents[0] != "the owl hunts at night" {
		t.Errorf("unexpected nearest document %v", res.Documents)
	}
	if res.Metadatas[0][model.MetaSourceURL] != url {
		t.Errorf("expected source_url metadata, got %v", res.Metadatas[0])
	}

	res, _ = idx.Query(ctx, "anything", 10)
	if len(res.Documents) != 2 {
		t.Errorf("expected all stored chunks, got %d", len(res.Documents))
	}
}

func TestChunkIndex_MismatchedLengths(t *testing.T) {
	idx := NewChunkIndex(testPool, NewTxManager(testPool), hashEmbedder{})
	err := idx.Upsert(context.Background(), []string{"a"}, nil, nil)
	var ie *domain.IndexError
	if !errors.As(err, &ie) || !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected IndexError wrapping ErrInvalidArgument, got %v", err)
	}
}

func splitChunks(chunks []model.Chunk) (ids, texts []string, metas []map[string]string) {
	for _, c := range chunks {
		ids = append(ids, c.ID)
		texts = append(texts, c.Text)
		metas = append(metas, c.Metadata)
	}
	return ids, texts, metas
}
