package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by Submit once the dispatcher has been stopped
var ErrStopped = errors.New("dispatcher stopped")

// ErrQueueFull is returned by Submit when the work queue has no room left
var ErrQueueFull = errors.New("dispatch queue full")

// TaskFunc is a unit of fire-and-forget work
type TaskFunc func(ctx context.Context) error

// Task is a named TaskFunc; the name only shows up in logs and metrics
type Task struct {
	Name string
	Run  TaskFunc
}

// FailureRecorder receives task failures, e.g. a metrics collector
type FailureRecorder interface {
	RecordTaskFailure(name string)
}

// Config holds the worker pool settings
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// DefaultConfig returns a small pool suited to a single viewer
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		QueueSize:   64,
		TaskTimeout: 10 * time.Second,
	}
}

// Dispatcher runs submitted tasks on a fixed pool of workers. Callers never
// wait for completion; failures are logged and not retried.
type Dispatcher struct {
	config   Config
	workCh   chan Task
	failures FailureRecorder

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and starts a dispatcher
func New(config Config, failures FailureRecorder) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		config:   config,
		workCh:   make(chan Task, config.QueueSize),
		failures: failures,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	return d
}

// Submit queues a task without blocking
func (d *Dispatcher) Submit(name string, run TaskFunc) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		log.Warn().Str("task", name).Msg("dispatcher stopped, task discarded")
		return ErrStopped
	}

	select {
	case d.workCh <- Task{Name: name, Run: run}:
		return nil
	default:
		log.Warn().Str("task", name).Int("queue_size", d.config.QueueSize).Msg("dispatch queue full, dropping task")
		return ErrQueueFull
	}
}

// Stop refuses new work and waits for queued tasks to finish. When ctx
// expires first the remaining tasks are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.workCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		log.Info().Msg("dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(workerID int) {
	defer d.wg.Done()

	for task := range d.workCh {
		d.execute(workerID, task)
	}
}

func (d *Dispatcher) execute(workerID int, task Task) {
	ctx := d.ctx
	if d.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("task", task.Name).
				Int("worker_id", workerID).
				Interface("panic", r).
				Msg("task panicked")
			d.recordFailure(task.Name)
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		log.Error().
			Err(err).
			Str("task", task.Name).
			Int("worker_id", workerID).
			Dur("duration", time.Since(start)).
			Msg("task failed")
		d.recordFailure(task.Name)
		return
	}

	log.Debug().
		Str("task", task.Name).
		Int("worker_id", workerID).
		Dur("duration", time.Since(start)).
		Msg("task completed")
}

func (d *Dispatcher) recordFailure(name string) {
	if d.failures != nil {
		d.failures.RecordTaskFailure(name)
	}
}
