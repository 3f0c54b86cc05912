package waitlist

import "sync"

// restaurantLocks serializes queue mutations per restaurant while letting
// different restaurants proceed in parallel.
type restaurantLocks struct {
	mu    sync.Mutex
	locks map[string]*restaurantLock
}

type restaurantLock struct {
	mu   sync.Mutex
	refs int
}

func newRestaurantLocks() *restaurantLocks {
	return &restaurantLocks{locks: make(map[string]*restaurantLock)}
}

// lock blocks until the restaurant is free and returns its unlock func.
// Idle locks are dropped so the map does not grow with every restaurant
// ever seen.
func (l *restaurantLocks) lock(restaurantID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[restaurantID]
	if !ok {
		entry = &restaurantLock{}
		l.locks[restaurantID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, restaurantID)
		}
		l.mu.Unlock()
	}
}
