package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock guards the single active index build. It never blocks: a
// caller that loses the race gets false and reports types.ErrConcurrentRun.
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = build running
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a build holds the lock
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// pathLocks serializes single-file updates per relative path
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *pathLocks) lock(path string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
