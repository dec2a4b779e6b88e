package deps

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/noqturne/noqturne/pkg/fsutil"
)

const lockRetryDelay = 200 * time.Millisecond

// depLock serializes provisioning of one dependency inside the process (mutex)
// and across processes (lock file).
type depLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

func newDepLock(binDir, name string) *depLock {
	return &depLock{file: flock.New(filepath.Join(binDir, "."+name+".lock"))}
}

func (l *depLock) lock(ctx context.Context) (func(), error) {
	l.mu.Lock()
	if err := fsutil.EnsureFileDir(l.file.Path()); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.file.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		l.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("acquire lock %s: %w", l.file.Path(), err)
	}
	return func() {
		_ = l.file.Unlock()
		l.mu.Unlock()
	}, nil
}
