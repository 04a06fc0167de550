//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockJobRepo is an in-memory job store with the same transition guard as
// the SQL implementation (no lease: a PROCESSING job is never re-claimed).
type MockJobRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.IngestionJob
	byURL map[string]string

	// Optional hooks
	CreateJobFunc   func(ctx context.Context, url string) (*model.IngestionJob, error)
	UpdateStatusErr error
	FindByURLErr    error
	DeleteCalls     []string
	StatusHistory   []model.JobStatus

	// StatusErrs fails only writes of the given status.
	StatusErrs map[model.JobStatus]error
}

var _ repository.IngestionJobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{byID: map[string]*model.IngestionJob{}, byURL: map[string]string{}}
}

func (m *MockJobRepo) seed(job model.IngestionJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := job
	m.byID[job.ID] = &cp
	m.byURL[job.URL] = job.ID
}

func (m *MockJobRepo) CreateJob(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, url)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byURL[url]; ok {
		return nil, domain.ErrConflict
	}
	now := time.Now()
	job := &model.IngestionJob{ID: uuid.NewString(), URL: url, Status: model.JobStatusPending, CreatedAt: now, UpdatedAt: now}
	m.byID[job.ID] = job
	m.byURL[url] = job.ID
	cp := *job
	return &cp, nil
}

func (m *MockJobRepo) FindByURL(ctx context.Context, tx repository.Tx, url string) (*model.IngestionJob, error) {
	if m.FindByURLErr != nil {
		return nil, m.FindByURLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byURL[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, lastError string) (bool, error) {
	if m.UpdateStatusErr != nil {
		return false, m.UpdateStatusErr
	}
	if err := m.StatusErrs[status]; err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	allowed := false
	switch status {
	case model.JobStatusProcessing:
		allowed = j.Status == model.JobStatusPending
	case model.JobStatusCompleted, model.JobStatusFailed:
		allowed = j.Status == model.JobStatusProcessing
	}
	if !allowed {
		return false, nil
	}
	j.Status = status
	j.UpdatedAt = time.Now()
	j.LastError = ""
	if status == model.JobStatusFailed {
		j.LastError = lastError
	}
	m.StatusHistory = append(m.StatusHistory, status)
	return true, nil
}

func (m *MockJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byURL, j.URL)
	delete(m.byID, id)
	return nil
}

func (m *MockJobRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// =============================
// Adapters
// =============================

type MockDispatcher struct {
	mu       sync.Mutex
	Err      error
	Enqueued [][]string
}

var _ adapter.TaskDispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) Enqueue(ctx context.Context, name string, args ...string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued = append(m.Enqueued, append([]string{name}, args...))
	return uuid.NewString(), nil
}

type MockFetcher struct {
	Pages map[string]string
	Err   error
	// Cancel, when set, is called before returning Err.
	Cancel func()
}

var _ adapter.ContentFetcher = (*MockFetcher)(nil)

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if m.Err != nil {
		if m.Cancel != nil {
			m.Cancel()
		}
		return "", m.Err
	}
	return m.Pages[url], nil
}

type upsertCall struct {
	IDs   []string
	Texts []string
	Metas []map[string]string
}

// MockIndex stores upserted records and answers queries with the first k
// records in id order.
type MockIndex struct {
	mu       sync.Mutex
	records  map[string]upsertRecord
	Upserts  []upsertCall
	Queries  []string
	Err      error
	QueryErr error
}

type upsertRecord struct {
	text string
	meta map[string]string
}

var _ adapter.IndexStore = (*MockIndex)(nil)

func NewMockIndex() *MockIndex { return &MockIndex{records: map[string]upsertRecord{}} }

func (m *MockIndex) Upsert(ctx context.Context, ids, texts []string, metas []map[string]string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts = append(m.Upserts, upsertCall{IDs: ids, Texts: texts, Metas: metas})
	for i := range ids {
		m.records[ids[i]] = upsertRecord{text: texts[i], meta: metas[i]}
	}
	return nil
}

func (m *MockIndex) Query(ctx context.Context, text string, k int) (adapter.QueryResult, error) {
	if m.QueryErr != nil {
		return adapter.QueryResult{}, m.QueryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, text)
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var res adapter.QueryResult
	for _, id := range ids {
		if len(res.Documents) == k {
			break
		}
		r := m.records[id]
		res.Documents = append(res.Documents, r.text)
		res.Metadatas = append(res.Metadatas, r.meta)
	}
	return res, nil
}

func (m *MockIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type MockGenerator struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Prompts []string
}

var _ adapter.Generator = (*MockGenerator)(nil)

func (m *MockGenerator) Provider() string { return "mock" }
func (m *MockGenerator) Model() string    { return "mock-model" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *MockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

type countingTokens struct{ n int }

func (c *countingTokens) Count(text string) int { c.n++; return len(text) }

var errBoom = errors.New("boom")
