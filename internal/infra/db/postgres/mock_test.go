//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/repository"
	red "scalable-rag-engine/internal/infra/redis"

	"github.com/go-redis/redis/v8"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerJobRepo mocks the database repository that the job decorator wraps.
type mockInnerJobRepo struct {
	CreateJobFunc    func(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error)
	FindByURLFunc    func(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error)
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error)
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, lastError string) (bool, error)
	DeleteFunc       func(ctx context.Context, tx repository.Tx, id string) error
}

func (m *mockInnerJobRepo) CreateJob(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	return m.CreateJobFunc(ctx, tx, url)
}
func (m *mockInnerJobRepo) FindByURL(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	return m.FindByURLFunc(ctx, tx, url)
}
func (m *mockInnerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, lastError string) (bool, error) {
	return m.UpdateStatusFunc(ctx, tx, id, status, lastError)
}
func (m *mockInnerJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}

// mockRedisClient is an in-memory red.RedisClient.
type mockRedisClient struct {
	mu   sync.Mutex
	data map[string]string
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: make(map[string]string)}
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockRedisClient) Close() error { return nil }

func (m *mockRedisClient) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
