package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Pool runs tasks with bounded concurrency.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewPool creates a pool running at most limit tasks at once.
func NewPool(limit int, logger *slog.Logger) *Pool {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(limit)),
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Submit schedules t and returns immediately. The task starts once a slot is
// free; canceling ctx before that finishes it as canceled.
func (p *Pool) Submit(ctx context.Context, t Task) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(newID(), t.Name, cancel)

	p.mu.Lock()
	p.handles[h.ID] = h
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			h.finish(ctx, err)
			return
		}
		defer p.sem.Release(1)

		h.start()
		p.logger.Debug("task started", "task", t.Name, "id", h.ID)
		err := p.run(ctx, t, h)
		h.finish(ctx, err)
		if err != nil {
			p.logger.Debug("task failed", "task", t.Name, "id", h.ID, "error", err)
		} else {
			p.logger.Debug("task completed", "task", t.Name, "id", h.ID, "elapsed", h.Elapsed())
		}
	}()
	return h
}

func (p *Pool) run(ctx context.Context, t Task, h *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return t.Run(ctx, h.report)
}

// Get returns the handle with id.
func (p *Pool) Get(id string) (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[id]
	return h, ok
}

// Handles returns every submitted handle.
func (p *Pool) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		out = append(out, h)
	}
	return out
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() { p.wg.Wait() }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
