package postgres

import (
	"context"
	"encoding/json"
	"time"

	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/repository"
	"scalable-rag-engine/internal/infra/metrics"
	red "scalable-rag-engine/internal/infra/redis"
)

var _ repository.IngestionJobRepository = (*jobRepoCacheDecorator)(nil)

// jobRepoCacheDecorator caches reads of jobs in a terminal state. Terminal
// jobs never change again, so their entries need no invalidation; Delete
// still clears them.
type jobRepoCacheDecorator struct {
	inner repository.IngestionJobRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewJobRepoCacheDecorator(inner repository.IngestionJobRepository, cache red.RedisClient, ttl time.Duration) repository.IngestionJobRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &jobRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func jobKeyByID(id string) string   { return "job:id:" + id }
func jobKeyByURL(url string) string { return "job:url:" + url }

func (d *jobRepoCacheDecorator) CreateJob(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	return d.inner.CreateJob(ctx, tx, url)
}

func (d *jobRepoCacheDecorator) FindByURL(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	return d.cached(ctx, jobKeyByURL(url), func() (*model.IngestionJob, error) {
		return d.inner.FindByURL(ctx, tx, url)
	})
}

func (d *jobRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
	return d.cached(ctx, jobKeyByID(id), func() (*model.IngestionJob, error) {
		return d.inner.FindByID(ctx, tx, id)
	})
}

func (d *jobRepoCacheDecorator) cached(ctx context.Context, key string, load func() (*model.IngestionJob, error)) (*model.IngestionJob, error) {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var job model.IngestionJob
		if json.Unmarshal([]byte(val), &job) == nil {
			metrics.IncJobCacheLookup("hit")
			return &job, nil
		}
		metrics.IncJobCacheLookup("miss")
	case red.IsNil(err):
		metrics.IncJobCacheLookup("miss")
	default:
		// cache outage: fall through to the store
		metrics.IncJobCacheLookup("error")
	}

	job, err := load()
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		if b, err := json.Marshal(job); err == nil {
			_ = d.cache.Set(ctx, jobKeyByID(job.ID), b, d.ttl)
			_ = d.cache.Set(ctx, jobKeyByURL(job.URL), b, d.ttl)
		}
	}
	return job, nil
}

// UpdateStatus never touches a terminal job, so nothing cached can go stale.
func (d *jobRepoCacheDecorator) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, lastError string) (bool, error) {
	return d.inner.UpdateStatus(ctx, tx, id, status, lastError)
}

func (d *jobRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	job, err := d.inner.FindByID(ctx, tx, id)
	if err == nil {
		_ = d.cache.Del(ctx, jobKeyByID(id), jobKeyByURL(job.URL))
	}
	return d.inner.Delete(ctx, tx, id)
}
