package zephyr

import "sync"

// IssueLocks serializes step mutations per issue id. Locks are created
// lazily on first use and live for the process lifetime. This is
// process-local only: deployments running more than one replica get no
// cross-process exclusion from it (single-process deployment assumption).
type IssueLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIssueLocks() *IssueLocks {
	return &IssueLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *IssueLocks) get(issueID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[issueID]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[issueID] = m
	return m
}

// WithLock runs fn while holding the lock for issueID. Callers for
// different issue ids proceed in parallel.
func (l *IssueLocks) WithLock(issueID string, fn func() error) error {
	m := l.get(issueID)
	m.Lock()
	defer m.Unlock()
	return fn()
}
