//go:build integration

package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"scalable-rag-engine/internal/config"
	"scalable-rag-engine/internal/domain/model"
)

var testClient *Client

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %v", err)
	}
	host, _ := container.Host(ctx)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	testClient, err = NewClient(ctx, &config.RedisConfig{URL: fmt.Sprintf("redis://%s:%s/0", host, port.Port())})
	if err != nil {
		_ = container.Terminate(ctx)
		log.Fatalf("connect redis: %v", err)
	}

	code := m.Run()

	_ = testClient.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newQueue(t *testing.T) *TaskQueue {
	t.Helper()
	return NewTaskQueue(testClient, "test-"+t.Name(), 200*time.Millisecond, nil)
}

func TestTaskQueue_EnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	id, err := q.Enqueue(ctx, model.ProcessURLTask, "job-1", "https://example.com")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx, "c1")
	if err != nil || d == nil {
		t.Fatalf("Dequeue: %v, %v", d, err)
	}
	if d.Task.ID != id || d.Task.Name != model.ProcessURLTask {
		t.Fatalf("unexpected task %+v", d.Task)
	}
	jobID, url, err := d.Task.URLArgs()
	if err != nil || jobID != "job-1" || url != "https://example.com" {
		t.Errorf("URLArgs: %q %q %v", jobID, url, err)
	}

	if n, _ := testClient.cli.LLen(ctx, q.processingKey("c1")).Result(); n != 1 {
		t.Errorf("expected 1 in-flight entry, got %d", n)
	}
	if err := q.Ack(ctx, d); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if n, _ := testClient.cli.LLen(ctx, q.processingKey("c1")).Result(); n != 0 {
		t.Errorf("expected empty in-flight list after ack, got %d", n)
	}

	idle, err := q.Dequeue(ctx, "c1")
	if err != nil || idle != nil {
		t.Errorf("expected idle dequeue, got %v, %v", idle, err)
	}
}

func TestTaskQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	for i := 0; i < 3; i++ {
		_, _ = q.Enqueue(ctx, model.ProcessURLTask, fmt.Sprintf("job-%d", i), "u")
	}
	for i := 0; i < 3; i++ {
		d, _ := q.Dequeue(ctx, "c1")
		if d == nil || d.Task.Args[0] != fmt.Sprintf("job-%d", i) {
			t.Fatalf("delivery %d out of order: %+v", i, d)
		}
		_ = q.Ack(ctx, d)
	}
}

func TestTaskQueue_RequeueAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	_, _ = q.Enqueue(ctx, model.ProcessURLTask, "job-1", "u")

	d, _ := q.Dequeue(ctx, "c1")
	if err := q.Requeue(ctx, d); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	d, _ = q.Dequeue(ctx, "c1")
	if d == nil || d.Task.Deliveries != 1 {
		t.Fatalf("expected redelivery with count 1, got %+v", d)
	}
	if err := q.DeadLetter(ctx, d, "fetch failed"); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	queued, dead, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if queued != 0 || dead != 1 {
		t.Errorf("expected 0 queued and 1 dead, got %d and %d", queued, dead)
	}
	if n, _ := testClient.cli.LLen(ctx, q.processingKey("c1")).Result(); n != 0 {
		t.Errorf("expected no in-flight entries, got %d", n)
	}
}

func TestTaskQueue_RecoverInFlight(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	_, _ = q.Enqueue(ctx, model.ProcessURLTask, "job-1", "u")
	_, _ = q.Enqueue(ctx, model.ProcessURLTask, "job-2", "u")

	// consumer crashes holding both
	_, _ = q.Dequeue(ctx, "crashed")
	_, _ = q.Dequeue(ctx, "crashed")

	n, err := q.RecoverInFlight(ctx, "crashed")
	if err != nil || n != 2 {
		t.Fatalf("RecoverInFlight: %d, %v", n, err)
	}
	queued, _, _ := q.Depth(ctx)
	if queued != 2 {
		t.Errorf("expected 2 queued after recovery, got %d", queued)
	}
}

func TestTaskQueue_UndecodablePayload(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	if err := testClient.cli.LPush(ctx, q.name, "not json").Err(); err != nil {
		t.Fatalf("push: %v", err)
	}
	d, err := q.Dequeue(ctx, "c1")
	if err != nil || d == nil {
		t.Fatalf("Dequeue: %v, %v", d, err)
	}
	if d.Task.Name != "" || d.Raw != "not json" {
		t.Errorf("expected zero task with raw payload, got %+v", d)
	}
	if err := q.DeadLetter(ctx, d, "malformed"); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}
}

func TestClient_KeyValue(t *testing.T) {
	ctx := context.Background()
	if err := testClient.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := testClient.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get: %q, %v", v, err)
	}
	_ = testClient.Del(ctx, "k")
	if _, err := testClient.Get(ctx, "k"); !IsNil(err) {
		t.Errorf("expected redis.Nil after delete, got %v", err)
	}
}
