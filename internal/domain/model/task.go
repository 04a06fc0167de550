package model

import (
	"fmt"
	"time"
)

// ProcessURLTask is the only task name workers understand.
const ProcessURLTask = "process_url_task"

// Task is the envelope carried by the work queue.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Args       []string  `json:"args"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Deliveries int       `json:"deliveries"`
	// ClaimRetries counts redeliveries caused by a failed claim write. They
	// do not spend the delivery budget.
	ClaimRetries int `json:"claim_retries,omitempty"`
}

// URLArgs extracts (job_id, url) from a process_url_task.
func (t Task) URLArgs() (jobID, url string, err error) {
	if t.Name != ProcessURLTask {
		return "", "", fmt.Errorf("task %q: unexpected name %q", t.ID, t.Name)
	}
	if len(t.Args) != 2 || t.Args[0] == "" || t.Args[1] == "" {
		return "", "", fmt.Errorf("task %q: want [job_id, url], got %d args", t.ID, len(t.Args))
	}
	return t.Args[0], t.Args[1], nil
}
