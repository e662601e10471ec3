package engine

import "sync"

// taskLocks hands out one mutex per task id. Entries are reference counted
// and dropped when the last holder unlocks, so the table only holds ids with
// a completion in flight.
type taskLocks struct {
	mu      sync.Mutex
	entries map[string]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{entries: map[string]*taskLock{}}
}

func (l *taskLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &taskLock{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

func (l *taskLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
