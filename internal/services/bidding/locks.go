package bidding

import "sync"

// lotLocks serializes admission and cancellation per lot. The critical
// section spans the full read-validate-write including the persistence
// round-trip; different lots proceed in parallel. Entries are reference
// counted so the map does not grow with every lot ever bid on.
type lotLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLotLocks() *lotLocks {
	return &lotLocks{entries: make(map[string]*lockEntry)}
}

// lock acquires the lot's exclusive section and returns the release func.
func (ll *lotLocks) lock(lotID string) func() {
	ll.mu.Lock()
	e, ok := ll.entries[lotID]
	if !ok {
		e = &lockEntry{}
		ll.entries[lotID] = e
	}
	e.refs++
	ll.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		ll.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(ll.entries, lotID)
		}
		ll.mu.Unlock()
	}
}
