// Package grant implements the claim ledger: one record per beneficiary with
// the last granted timestamp. Backends share upsert-by-key semantics; domain
// logic (window checks, commit ordering) belongs to the service, stores are
// pure I/O.
package grant

import (
	"context"
	"sync"
	"time"

	"faucetd/internal/faucet"
	"faucetd/pkg/platform/sentinel"
)

// InMemoryStore keeps grants in a process-local map. Read-your-writes within
// the process, nothing across restarts or instances. This is the weaker mode,
// suited to tests and single-node development. Production uses the postgres or
// redis store.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[faucet.Address]time.Time
}

// NewInMemory creates an empty in-memory grant store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[faucet.Address]time.Time),
	}
}

// LastGrant returns when the beneficiary was last granted, or nil when never.
func (s *InMemoryStore) LastGrant(_ context.Context, addr faucet.Address) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.grants[addr]; ok {
		return &t, nil
	}
	return nil, nil
}

// RecordGrant upserts the grant timestamp. Latest write wins.
func (s *InMemoryStore) RecordGrant(_ context.Context, addr faucet.Address, grantedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[addr] = grantedAt
	return nil
}

// PurgeGrant removes the record for a beneficiary.
func (s *InMemoryStore) PurgeGrant(_ context.Context, addr faucet.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[addr]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.grants, addr)
	return nil
}
