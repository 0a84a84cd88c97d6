package core

import "sync"

// AuctionLocks is a table of per-auction mutexes.
// The engine and the distributor share one table so that every mutating
// operation on an auction sees a consistent view of both.
type AuctionLocks struct {
	mu    sync.Mutex
	locks map[AuctionID]*sync.Mutex
}

// NewAuctionLocks returns an empty lock table.
func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{locks: make(map[AuctionID]*sync.Mutex)}
}

// Lock acquires the mutex for id and returns its unlock function.
func (l *AuctionLocks) Lock(id AuctionID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
