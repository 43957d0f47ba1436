// Package lock provides the distributed mutex that guards an entire
// orchestration run when isolation is requested. Normal single-process runs
// never touch it.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/logger"
)

// Locker acquires a named mutex, blocking up to timeout. The mutex
// auto-expires after ttl so crashed holders recover. The returned release
// function is safe to call exactly once.
type Locker interface {
	Acquire(ctx context.Context, name string, timeout, ttl time.Duration) (release func(), err error)
}

// WithLock runs body under the named mutex. Release is unconditional once
// body returns or panics.
func WithLock(ctx context.Context, locker Locker, name string, timeout, ttl time.Duration, body func() error) error {
	release, err := locker.Acquire(ctx, name, timeout, ttl)
	if err != nil {
		return err
	}
	defer release()

	return body()
}

// localLease is one live acquisition. The token ties a release back to the
// acquisition that created it, so a holder whose TTL already expired cannot
// free the lock out from under the next holder.
type localLease struct {
	token  uint64
	expiry time.Time
}

// LocalLocker is an in-process Locker for single-host runs and tests.
type LocalLocker struct {
	mu        sync.Mutex
	lastToken uint64
	locks     map[string]localLease
}

// NewLocalLocker creates an empty local locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]localLease),
	}
}

// Acquire polls until the named lock is free, the timeout elapses or ctx is
// cancelled.
func (l *LocalLocker) Acquire(ctx context.Context, name string, timeout, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)

	for {
		if token, ok := l.tryAcquire(name, ttl); ok {
			logger.Op.WithFields(map[string]interface{}{
				"lock": name,
				"ttl":  ttl,
			}).Debug("Acquired local lock")
			return func() { l.release(name, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, errors.NewLockUnavailableError(name, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, errors.NewLockUnavailableError(name, timeout).WithOriginalError(ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *LocalLocker) tryAcquire(name string, ttl time.Duration) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, held := l.locks[name]; held && time.Now().Before(lease.expiry) {
		return 0, false
	}
	l.lastToken++
	l.locks[name] = localLease{token: l.lastToken, expiry: time.Now().Add(ttl)}
	return l.lastToken, true
}

// release frees the lock only while the releasing acquisition still owns it.
func (l *LocalLocker) release(name string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lease, held := l.locks[name]; held && lease.token == token {
		delete(l.locks, name)
	}
}
