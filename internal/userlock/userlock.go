// Package userlock serializes per-user write access. Concurrent matcher or
// calculation runs for the same user are not safe against each other, so
// both take the user's lock for the duration of a run. Different users
// never contend.
package userlock

import "sync"

// Keyed is a set of named mutexes, one per user id.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty keyed lock set.
func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for userID, creating it on first use.
// Locks are never discarded; the per-user footprint is one mutex.
func (k *Keyed) Lock(userID string) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		k.locks[userID] = l
	}
	k.mu.Unlock()

	l.Lock()
}

// Unlock releases the mutex for userID. Unlock of a never-locked user id
// panics, same as sync.Mutex.
func (k *Keyed) Unlock(userID string) {
	k.mu.Lock()
	l := k.locks[userID]
	k.mu.Unlock()

	l.Unlock()
}
