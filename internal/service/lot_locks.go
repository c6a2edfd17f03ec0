package service

import "sync"

// lotLocks serializes lot matching per (account, symbol). Matching across
// different keys proceeds in parallel; two matchers on the same key would
// otherwise race on the read-modify-write of remaining quantities.
type lotLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLotLocks() *lotLocks {
	return &lotLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the key, creating it on first use. The caller
// must release on every exit path, including failure.
func (l *lotLocks) acquire(accountID, symbol string) *sync.Mutex {
	key := accountID + "|" + symbol

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}
