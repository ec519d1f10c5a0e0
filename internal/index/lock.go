package index

import (
	"sync"
	"sync/atomic"
)

// buildLock provides non-blocking lock semantics using atomic operations
type buildLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *buildLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *buildLock) Release() {
	l.state.Store(0)
}

// buildLocks maps repo keys to their build locks so that two Index values
// over the same root still exclude each other
var buildLocks sync.Map // map[string]*buildLock

func lockForRepo(repoKey string) *buildLock {
	actual, _ := buildLocks.LoadOrStore(repoKey, &buildLock{})
	return actual.(*buildLock)
}
