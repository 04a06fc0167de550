package adapter

import (
	"context"

	"scalable-rag-engine/internal/domain/model"
)

// ContentFetcher retrieves a URL and returns its cleaned text. Failures are
// *domain.FetchError.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Chunker splits text into bounded, overlapping pieces. Pure and deterministic.
type Chunker interface {
	Split(text string) ([]string, error)
}

// QueryResult holds the nearest documents for a query, closest first.
// Metadatas[i] belongs to Documents[i].
type QueryResult struct {
	Documents []string
	Metadatas []map[string]string
}

// IndexStore is the retrieval index. Upsert overwrites records with the same id.
type IndexStore interface {
	Upsert(ctx context.Context, ids []string, texts []string, metadatas []map[string]string) error
	Query(ctx context.Context, text string, k int) (QueryResult, error)
}

// TaskDispatcher hands named tasks to the background workers.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, name string, args ...string) (taskID string, err error)
}

// Delivery is a task handed to one consumer. Raw is the exact queued payload.
type Delivery struct {
	Task     model.Task
	Consumer string
	Raw      string
}

// TaskQueue is the consumer side of the dispatcher. Every delivery must end
// in exactly one of Ack, Requeue or DeadLetter.
type TaskQueue interface {
	TaskDispatcher
	// Dequeue blocks up to the queue's poll interval; (nil, nil) means idle.
	Dequeue(ctx context.Context, consumer string) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Requeue(ctx context.Context, d *Delivery) error
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
	// RecoverInFlight returns a consumer's unfinished deliveries to the queue.
	RecoverInFlight(ctx context.Context, consumer string) (int, error)
}
