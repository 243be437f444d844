package relay

import "sync"

// handleLocks serializes channel resolution per customer handle. Two
// concurrent inbound events for the same handle would otherwise both observe
// "no open channel" and both register the outbound webhook; the idempotent
// create collapses the channels but nothing deduplicates the registration.
type handleLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newHandleLocks() *handleLocks {
	return &handleLocks{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for the handle and returns its release func.
// Entries are reference-counted so the map does not grow with every handle
// ever seen.
func (h *handleLocks) Lock(handle string) func() {
	h.mu.Lock()
	e, ok := h.locks[handle]
	if !ok {
		e = &lockEntry{}
		h.locks[handle] = e
	}
	e.refs++
	h.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		h.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(h.locks, handle)
		}
		h.mu.Unlock()
	}
}
