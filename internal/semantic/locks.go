package semantic

import "sync"

// userLocks hands out one RWMutex per uid. Entries are dropped once no
// goroutine holds or waits on them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	sync.RWMutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: map[string]*userLock{}}
}

func (l *userLocks) acquire(uid string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.m[uid]
	if e == nil {
		e = &userLock{}
		l.m[uid] = e
	}
	e.refs++
	return e
}

func (l *userLocks) release(uid string, e *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, uid)
	}
}

func (l *userLocks) Lock(uid string) (unlock func()) {
	e := l.acquire(uid)
	e.Lock()
	return func() {
		e.Unlock()
		l.release(uid, e)
	}
}

func (l *userLocks) RLock(uid string) (unlock func()) {
	e := l.acquire(uid)
	e.RLock()
	return func() {
		e.RUnlock()
		l.release(uid, e)
	}
}
