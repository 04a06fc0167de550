package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/logging"
)

var _ adapter.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is a reliable list queue. Producers LPUSH onto <name>; a consumer
// atomically moves one entry to <name>:processing:<consumer> and removes it
// from there once it has decided the outcome. Entries left behind by a crashed
// consumer are returned by RecoverInFlight.
type TaskQueue struct {
	cli   *redis.Client
	name  string
	poll  time.Duration
	log   *zerolog.Logger
	clock func() time.Time
}

func NewTaskQueue(c *Client, name string, poll time.Duration, log *zerolog.Logger) *TaskQueue {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	l := log.With().Str("component", "task_queue").Str("queue", name).Logger()
	return &TaskQueue{cli: c.cli, name: name, poll: poll, log: &l, clock: time.Now}
}

func (q *TaskQueue) processingKey(consumer string) string {
	return q.name + ":processing:" + consumer
}

func (q *TaskQueue) deadKey() string { return q.name + ":dead" }

func (q *TaskQueue) Enqueue(ctx context.Context, name string, args ...string) (string, error) {
	t := model.Task{
		ID:         ulid.Make().String(),
		Name:       name,
		Args:       args,
		EnqueuedAt: q.clock().UTC(),
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	if err := q.cli.LPush(ctx, q.name, raw).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	q.log.Debug().Str("task_id", t.ID).Str("task", name).Msg("task enqueued")
	return t.ID, nil
}

// Dequeue waits up to the poll interval for a task. A payload that does not
// decode is still returned, with a zero Task, so the caller can dead-letter it.
func (q *TaskQueue) Dequeue(ctx context.Context, consumer string) (*adapter.Delivery, error) {
	raw, err := q.cli.BRPopLPush(ctx, q.name, q.processingKey(consumer), q.poll).Result()
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	d := &adapter.Delivery{Consumer: consumer, Raw: raw}
	if err := json.Unmarshal([]byte(raw), &d.Task); err != nil {
		q.log.Warn().Err(err).Msg("undecodable task payload")
		d.Task = model.Task{}
	}
	return d, nil
}

func (q *TaskQueue) Ack(ctx context.Context, d *adapter.Delivery) error {
	if err := q.cli.LRem(ctx, q.processingKey(d.Consumer), 1, d.Raw).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", d.Task.ID, err)
	}
	return nil
}

// Requeue puts the task back at the tail of the queue with its delivery count
// incremented.
func (q *TaskQueue) Requeue(ctx context.Context, d *adapter.Delivery) error {
	t := d.Task
	t.Deliveries++
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, q.name, raw)
		p.LRem(ctx, q.processingKey(d.Consumer), 1, d.Raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("requeue %s: %w", t.ID, err)
	}
	return nil
}

type deadLetter struct {
	Raw      string    `json:"raw"`
	Reason   string    `json:"reason"`
	Consumer string    `json:"consumer"`
	FailedAt time.Time `json:"failed_at"`
}

func (q *TaskQueue) DeadLetter(ctx context.Context, d *adapter.Delivery, reason string) error {
	entry, err := json.Marshal(deadLetter{Raw: d.Raw, Reason: reason, Consumer: d.Consumer, FailedAt: q.clock().UTC()})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	_, err = q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, q.deadKey(), entry)
		p.LRem(ctx, q.processingKey(d.Consumer), 1, d.Raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", d.Task.ID, err)
	}
	q.log.Warn().Str("task_id", d.Task.ID).Str("reason", reason).Msg("task dead-lettered")
	return nil
}

func (q *TaskQueue) RecoverInFlight(ctx context.Context, consumer string) (int, error) {
	n := 0
	for {
		err := q.cli.RPopLPush(ctx, q.processingKey(consumer), q.name).Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return n, fmt.Errorf("recover in-flight: %w", err)
		}
		n++
	}
	if n > 0 {
		q.log.Info().Str("consumer", consumer).Int("recovered", n).Msg("returned in-flight tasks to queue")
	}
	return n, nil
}

// Depth reports queued and dead-lettered task counts.
func (q *TaskQueue) Depth(ctx context.Context) (queued, dead int64, err error) {
	if queued, err = q.cli.LLen(ctx, q.name).Result(); err != nil {
		return 0, 0, err
	}
	if dead, err = q.cli.LLen(ctx, q.deadKey()).Result(); err != nil {
		return 0, 0, err
	}
	return queued, dead, nil
}
