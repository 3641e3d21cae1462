package app

import "sync"

// draftLocks hands out one mutex per draft id so mutations on the same
// draft run one at a time while unrelated drafts proceed in parallel.
// Entries are reference counted and removed once the last holder unlocks,
// so the map does not grow with every draft ever touched.
type draftLocks struct {
	mu      sync.Mutex
	entries map[string]*draftLockEntry
}

type draftLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDraftLocks() *draftLocks {
	return &draftLocks{entries: make(map[string]*draftLockEntry)}
}

func (l *draftLocks) lock(draftID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[draftID]
	if !ok {
		entry = &draftLockEntry{}
		l.entries[draftID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, draftID)
		}
		l.mu.Unlock()
	}
}
