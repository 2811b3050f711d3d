package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

// StatusLine is one entry of a task's ordered progress log.
type StatusLine struct {
	At   time.Time `json:"at"`
	Line string    `json:"line"`
}

// Task is a handle on a running or finished creation task. Callers may poll
// Status, or block on Wait.
type Task struct {
	ID   string
	Name string

	mu      sync.Mutex
	lines   []StatusLine
	outcome *domain.CreationOutcome
	err     error

	done chan struct{}
}

// Append records a progress status line.
func (t *Task) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, StatusLine{At: time.Now(), Line: line})
}

// Status returns a copy of the progress log so far.
func (t *Task) Status() []StatusLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StatusLine(nil), t.lines...)
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the outcome once the task has finished. done reports
// whether it has.
func (t *Task) Result() (outcome *domain.CreationOutcome, done bool, err error) {
	select {
	case <-t.done:
	default:
		return nil, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, true, t.err
}

// Wait blocks until the task finishes or ctx expires.
func (t *Task) Wait(ctx context.Context) (*domain.CreationOutcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.err
}

func (t *Task) finish(outcome *domain.CreationOutcome, err error) {
	t.mu.Lock()
	t.outcome = outcome
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Fn is the body of a task. It reports progress through report and must
// respect ctx, which carries the task's overall deadline.
type Fn func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error)

// Registry launches tasks and keeps finished handles around for a retention
// window so callers can still poll their outcome.
type Registry struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	retain  time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewRegistry builds a registry. timeout bounds each task's run; retain is
// how long finished handles stay pollable.
func NewRegistry(timeout, retain time.Duration, logger *zap.Logger) *Registry {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	if retain <= 0 {
		retain = time.Hour
	}
	return &Registry{
		tasks:   make(map[string]*Task),
		retain:  retain,
		timeout: timeout,
		logger:  logger,
	}
}

// Run launches fn detached from the caller's context: once creation work has
// begun it runs to completion or explicit failure, never silently cancelled
// by a disconnecting client.
func (r *Registry) Run(name string, fn Fn) *Task {
	task := &Task{
		ID:   uuid.NewString(),
		Name: name,
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		outcome, err := fn(ctx, task.Append)
		task.finish(outcome, err)
		if err != nil {
			r.logger.Error("task failed",
				zap.String("task_id", task.ID),
				zap.String("task", name),
				zap.Error(err))
		}

		time.AfterFunc(r.retain, func() {
			r.mu.Lock()
			delete(r.tasks, task.ID)
			r.mu.Unlock()
		})
	}()

	return task
}

// Get looks up a task handle by id.
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	return task, ok
}
