package review

import "sync"

// uploadLocks serializes review mutations per upload within this process.
// The storage layer's conditional updates remain the cross-process guard;
// this keeps concurrent approve/edit calls from interleaving their reads.
type uploadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUploadLocks() *uploadLocks {
	return &uploadLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *uploadLocks) acquire(uploadID string) func() {
	l.mu.Lock()
	m, ok := l.locks[uploadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[uploadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
