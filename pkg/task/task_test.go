package task

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noqturne/noqturne/internal/logger"
)

func TestPool_RunsTaskAndReportsProgress(t *testing.T) {
	p := NewPool(2, logger.NewTest())
	h := p.Submit(context.Background(), Task{
		Name: "work",
		Run: func(_ context.Context, report ReportFunc) error {
			report(50, "half")
			report(100, "done")
			return nil
		},
	})

	var updates []Update
	for u := range h.Progress() {
		updates = append(updates, u)
	}
	require.NoError(t, h.Wait())
	assert.Equal(t, StatusCompleted, h.Status())
	require.Len(t, updates, 2)
	assert.Equal(t, Update{TaskID: h.ID, Name: "work", Percent: 100, Msg: "done"}, updates[1])
	assert.NotEmpty(t, h.ID)

	got, ok := p.Get(h.ID)
	require.True(t, ok)
	assert.Same(t, h, got)
}

func TestPool_Failure(t *testing.T) {
	boom := stderrors.New("boom")
	p := NewPool(1, logger.NewTest())
	h := p.Submit(context.Background(), Task{Name: "fail", Run: func(context.Context, ReportFunc) error { return boom }})

	assert.ErrorIs(t, h.Wait(), boom)
	assert.Equal(t, StatusFailed, h.Status())
	assert.True(t, h.Status().IsFinished())
}

func TestPool_PanicBecomesError(t *testing.T) {
	p := NewPool(1, logger.NewTest())
	h := p.Submit(context.Background(), Task{Name: "panic", Run: func(context.Context, ReportFunc) error { panic("oops") }})

	err := h.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestPool_LimitsConcurrency(t *testing.T) {
	p := NewPool(2, logger.NewTest())
	var running, peak atomic.Int32
	for range 6 {
		p.Submit(context.Background(), Task{Name: "n", Run: func(context.Context, ReportFunc) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		}})
	}
	p.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, p.Handles(), 6)
}

func TestHandle_Cancel(t *testing.T) {
	p := NewPool(1, logger.NewTest())
	h := p.Submit(context.Background(), Task{Name: "slow", Run: func(ctx context.Context, _ ReportFunc) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	h.Cancel()

	assert.ErrorIs(t, h.Wait(), context.Canceled)
	assert.Equal(t, StatusCanceled, h.Status())
}

func TestPool_CanceledWhileQueued(t *testing.T) {
	p := NewPool(1, logger.NewTest())
	release := make(chan struct{})
	started := make(chan struct{})
	first := p.Submit(context.Background(), Task{Name: "blocker", Run: func(context.Context, ReportFunc) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := p.Submit(ctx, Task{Name: "queued", Run: func(context.Context, ReportFunc) error {
		ran.Store(true)
		return nil
	}})
	cancel()

	assert.ErrorIs(t, queued.Wait(), context.Canceled)
	close(release)
	require.NoError(t, first.Wait())
	assert.False(t, ran.Load())
	assert.Zero(t, queued.Elapsed())
}

func TestHandle_ReportAfterFinishIsIgnored(t *testing.T) {
	p := NewPool(1, logger.NewTest())
	var leaked ReportFunc
	h := p.Submit(context.Background(), Task{Name: "leak", Run: func(_ context.Context, report ReportFunc) error {
		leaked = report
		return nil
	}})
	require.NoError(t, h.Wait())
	assert.NotPanics(t, func() { leaked(10, "late") })
}
