// Package task runs long operations in the background with progress reporting.
package task

import (
	"context"
	"sync"
	"time"
)

// Status represents the status of a task.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCanceled  Status = "Canceled"
)

// IsFinished returns true if the task is in a finished state.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Update is one progress report of a task.
type Update struct {
	TaskID  string
	Name    string
	Percent float64
	Msg     string
}

// ReportFunc publishes progress from inside a task. percent < 0 means unknown.
type ReportFunc func(percent float64, msg string)

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context, report ReportFunc) error
}

// progressBuffer bounds the updates queued for a slow reader. Further updates
// are dropped until the reader catches up.
const progressBuffer = 64

// Handle tracks a submitted task.
type Handle struct {
	ID   string
	Name string

	progress chan Update
	done     chan struct{}
	cancel   context.CancelFunc

	mu         sync.Mutex
	status     Status
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

func newHandle(id, name string, cancel context.CancelFunc) *Handle {
	return &Handle{
		ID:       id,
		Name:     name,
		progress: make(chan Update, progressBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
		status:   StatusPending,
	}
}

// Progress returns the update channel. It is closed when the task finishes.
func (h *Handle) Progress() <-chan Update { return h.progress }

// Done is closed when the task finishes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

// Cancel asks the task to stop.
func (h *Handle) Cancel() { h.cancel() }

// Status returns the current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Err returns the task error once finished.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Elapsed returns how long the task ran, or has been running.
func (h *Handle) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.startedAt.IsZero():
		return 0
	case h.finishedAt.IsZero():
		return time.Since(h.startedAt)
	default:
		return h.finishedAt.Sub(h.startedAt)
	}
}

func (h *Handle) report(percent float64, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.IsFinished() {
		return
	}
	select {
	case h.progress <- Update{TaskID: h.ID, Name: h.Name, Percent: percent, Msg: msg}:
	default:
	}
}

func (h *Handle) start() {
	h.mu.Lock()
	h.status = StatusRunning
	h.startedAt = time.Now()
	h.mu.Unlock()
}

func (h *Handle) finish(ctx context.Context, err error) {
	h.mu.Lock()
	h.err = err
	h.finishedAt = time.Now()
	switch {
	case err == nil:
		h.status = StatusCompleted
	case ctx.Err() != nil:
		h.status = StatusCanceled
	default:
		h.status = StatusFailed
	}
	close(h.progress)
	h.mu.Unlock()
	close(h.done)
}
