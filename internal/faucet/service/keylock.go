package service

import (
	"sync"

	"faucetd/internal/faucet"
)

// keyedMutex provides a mutex per beneficiary address. Lock granularity is
// per-key so unrelated beneficiaries never serialize on each other; entries
// are refcounted and removed once the last waiter releases, keeping the map
// from growing with every address ever seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[faucet.Address]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[faucet.Address]*lockEntry)}
}

// lock acquires the mutex for addr, blocking behind any in-flight holder, and
// returns the release function. Callers must release on every exit path.
func (k *keyedMutex) lock(addr faucet.Address) (release func()) {
	k.mu.Lock()
	entry, ok := k.entries[addr]
	if !ok {
		entry = &lockEntry{}
		k.entries[addr] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, addr)
		}
		k.mu.Unlock()
	}
}
