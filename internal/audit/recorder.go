// Package audit persists a durable, append-only trail of security events.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/daap14/parley/internal/worker"
)

// Submitter accepts background tasks.
type Submitter interface {
	Submit(task worker.Task) error
}

// Recorder writes audit entries without blocking the caller.
type Recorder struct {
	repo      Repository
	submitter Submitter
}

// NewRecorder creates a Recorder that writes through repo on submitter's workers.
func NewRecorder(repo Repository, submitter Submitter) *Recorder {
	return &Recorder{repo: repo, submitter: submitter}
}

// Record schedules e for insertion. Failures are retried by the worker and
// logged once retries are exhausted; they never reach the caller. When the
// dispatcher is already shut down the entry is written inline. ctx only
// supplies the request ID; the write outlives it.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	task := worker.NewTask(ctx, "audit:"+e.Action, func(ctx context.Context) error {
		entry := e
		return r.repo.Insert(ctx, &entry)
	})

	if err := r.submitter.Submit(task); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := task.Run(ctx); err != nil {
			slog.Error("writing audit entry", "action", e.Action, "requestId", task.RequestID, "error", err)
		}
	}
}
