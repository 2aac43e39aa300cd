package syncer

import "sync"

// itemLocks serializes local cache commits per (vault, item). Concurrent
// updates to the same item still race at the remote layer (one wins, one
// gets a conflict); these locks only guarantee the local transaction for
// an item is single-writer.
type itemLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for an item, creating it on first use, and
// returns the unlock function.
func (l *itemLocks) lock(vaultID, itemID string) func() {
	key := vaultID + "/" + itemID

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
