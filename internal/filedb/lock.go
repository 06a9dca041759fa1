package filedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
)

type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

const (
	// maxReaders is the semaphore weight an exclusive holder takes.
	maxReaders = 64

	DefaultLockTimeout = 5 * time.Second
	defaultRetryDelay  = 5 * time.Millisecond
)

// Locker serializes access to table files. Inside the process a FIFO
// weighted semaphore per file admits many readers or one writer; across
// processes an advisory flock on "<file>.lock" does the same. The kernel
// drops the flock when the holding process exits.
type Locker struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	Metrics    *Metrics

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocker(timeout time.Duration, m *Metrics) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{
		Timeout:    timeout,
		RetryDelay: defaultRetryDelay,
		Metrics:    m,
		sems:       make(map[string]*semaphore.Weighted),
	}
}

// WithLock runs fn while holding the lock for path in the given mode. The
// lock is released on every return path. If ctx is done before the lock is
// held, fn never runs and ctx's error is returned. If the wait exceeds the
// locker timeout the result is ErrBusy.
func (l *Locker) WithLock(ctx context.Context, table, path string, mode LockMode, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	start := time.Now()
	release, err := l.acquire(wctx, path, mode)
	l.Metrics.observeLockWait(table, mode, time.Since(start))
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			l.Metrics.lockTimeout(table)
			return fmt.Errorf("%w: %s %s lock not acquired within %s", ErrBusy, table, mode, l.Timeout)
		}
		return fmt.Errorf("filedb: lock %s: %w", table, err)
	}
	defer release()

	return fn()
}

func (l *Locker) acquire(ctx context.Context, path string, mode LockMode) (func(), error) {
	weight := int64(1)
	if mode == Exclusive {
		weight = maxReaders
	}

	sem := l.semaphore(path)
	if err := sem.Acquire(ctx, weight); err != nil {
		return nil, err
	}

	fl := flock.New(path + ".lock")
	var (
		ok  bool
		err error
	)
	if mode == Exclusive {
		ok, err = fl.TryLockContext(ctx, l.RetryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, l.RetryDelay)
	}
	if err == nil && !ok {
		err = ctx.Err()
		if err == nil {
			err = errors.New("flock not acquired")
		}
	}
	if err != nil {
		sem.Release(weight)
		return nil, err
	}

	return func() {
		_ = fl.Unlock()
		sem.Release(weight)
	}, nil
}

func (l *Locker) semaphore(path string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sems[path]
	if !ok {
		s = semaphore.NewWeighted(maxReaders)
		l.sems[path] = s
	}
	return s
}
