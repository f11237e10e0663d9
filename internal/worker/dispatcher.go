// Package worker runs fire-and-forget background tasks off the request path.
//
// Tasks are delivered at least once: a failed task is retried with
// exponential backoff up to Config.MaxAttempts, and Shutdown waits for
// every accepted task to finish before returning.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daap14/parley/internal/requestid"
)

// ErrClosed is returned by Submit once Shutdown has been called.
var ErrClosed = errors.New("dispatcher is shut down")

// Task is a unit of background work. Run receives a context bounded by
// Config.TaskTimeout that is independent of any request context. RequestID,
// when set, correlates the task with the request that scheduled it: it is
// logged on failure and available to Run through requestid.FromContext.
type Task struct {
	Name      string
	RequestID string
	Run       func(ctx context.Context) error
}

// NewTask builds a Task tagged with the request ID carried by ctx.
func NewTask(ctx context.Context, name string, run func(ctx context.Context) error) Task {
	return Task{Name: name, RequestID: requestid.FromContext(ctx), Run: run}
}

// Config controls the dispatcher's capacity and retry policy.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	TaskTimeout time.Duration
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		MaxAttempts: 3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		TaskTimeout: 10 * time.Second,
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithObserver registers a callback invoked once per task with its final result.
func WithObserver(fn func(task string, err error)) Option {
	return func(d *Dispatcher) {
		d.observe = fn
	}
}

// Dispatcher is a bounded queue drained by a fixed set of workers.
type Dispatcher struct {
	cfg     Config
	queue   chan Task
	logger  *slog.Logger
	observe func(task string, err error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	started bool
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// New creates a Dispatcher. Zero fields in cfg take their DefaultConfig values.
func New(cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.BaseBackoff)
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. Calling Start more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.startLocked()
	}
}

func (d *Dispatcher) startLocked() {
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			for task := range d.queue {
				d.run(task)
				d.pending.Done()
			}
		}()
	}
}

// Submit enqueues a task without blocking. When the queue is full the task
// runs on its own goroutine, still tracked by Shutdown.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	d.pending.Add(1)
	select {
	case d.queue <- task:
	default:
		go func() {
			defer d.pending.Done()
			d.run(task)
		}()
	}
	return nil
}

// Shutdown stops accepting tasks and waits for accepted ones to finish.
// When ctx expires first, the contexts of in-flight tasks and pending retry
// waits are cancelled and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		// queued tasks still need workers to drain them
		d.startLocked()
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		d.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) run(task Task) {
	var err error
	attempts := 0
	for attempts < d.cfg.MaxAttempts {
		attempts++
		err = d.attempt(task)
		if err == nil || attempts == d.cfg.MaxAttempts {
			break
		}
		if !d.sleep(d.backoff(attempts)) {
			break
		}
	}

	if d.observe != nil {
		d.observe(task.Name, err)
	}
	if err != nil {
		d.logger.Error("background task failed",
			"task", task.Name,
			"attempts", attempts,
			"requestId", task.RequestID,
			"error", err,
		)
	}
}

func (d *Dispatcher) attempt(task Task) (err error) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.TaskTimeout)
	defer cancel()
	if task.RequestID != "" {
		ctx = requestid.NewContext(ctx, task.RequestID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	return task.Run(ctx)
}

// backoff returns BaseBackoff doubled per previous attempt, capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

func (d *Dispatcher) sleep(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}
