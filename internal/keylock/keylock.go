// Package keylock serialises work per account number.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key and forgets keys nobody holds.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the matching unlock.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// LockPair takes both keys in lexical order so two opposite transfers cannot
// deadlock. Equal keys are locked once.
func (l *Locker) LockPair(a, b string) func() {
	if a == b {
		return l.Lock(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := l.Lock(a)
	unlockB := l.Lock(b)
	return func() {
		unlockB()
		unlockA()
	}
}
