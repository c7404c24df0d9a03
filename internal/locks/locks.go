// Package locks provides an in-process lock manager keyed by resource id.
// A reserve call spans several resource keys at once; acquiring them as one
// sorted batch keeps conflicting callers serialized without deadlocks.
package locks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrWaitExceeded is returned when a lock could not be acquired within the
// caller's wait budget. The operation is safe to retry.
var ErrWaitExceeded = errors.New("lock wait exceeded")

type Manager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]chan struct{})}
}

// Acquire takes every key in the batch, in sorted order, waiting at most
// maxWait for each. On failure it releases anything already held and returns
// ErrWaitExceeded (or the context error). The returned release function is
// safe to call exactly once.
func (m *Manager) Acquire(ctx context.Context, keys []string, maxWait time.Duration) (func(), error) {
	sorted := dedupe(keys)

	var held []chan struct{}
	releaseHeld := func() {
		// Reverse order, matching acquisition discipline.
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for _, key := range sorted {
		lock := m.lockFor(key)
		select {
		case lock <- struct{}{}:
			held = append(held, lock)
		case <-timer.C:
			releaseHeld()
			return nil, ErrWaitExceeded
		case <-ctx.Done():
			releaseHeld()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}

func (m *Manager) lockFor(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		m.locks[key] = lock
	}
	return lock
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
