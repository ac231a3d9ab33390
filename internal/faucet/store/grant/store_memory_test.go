package grant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"faucetd/internal/faucet"
	"faucetd/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func (s *InMemoryStoreSuite) TestLastGrant() {
	ctx := context.Background()
	addr := faucet.Address("rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH")

	s.Run("unknown beneficiary returns nil, not an error", func() {
		last, err := s.store.LastGrant(ctx, addr)
		s.NoError(err)
		s.Nil(last)
	})

	s.Run("reads back the recorded timestamp", func() {
		grantedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		s.Require().NoError(s.store.RecordGrant(ctx, addr, grantedAt))

		last, err := s.store.LastGrant(ctx, addr)
		s.NoError(err)
		s.Require().NotNil(last)
		s.True(last.Equal(grantedAt))
	})
}

func (s *InMemoryStoreSuite) TestRecordGrant() {
	ctx := context.Background()
	addr := faucet.Address("rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH")

	s.Run("upsert: latest write wins", func() {
		first := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
		second := first.Add(25 * time.Hour)
		s.Require().NoError(s.store.RecordGrant(ctx, addr, first))
		s.Require().NoError(s.store.RecordGrant(ctx, addr, second))

		last, err := s.store.LastGrant(ctx, addr)
		s.NoError(err)
		s.Require().NotNil(last)
		s.True(last.Equal(second))
	})

	s.Run("idempotent for the same timestamp", func() {
		at := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
		s.Require().NoError(s.store.RecordGrant(ctx, addr, at))
		s.Require().NoError(s.store.RecordGrant(ctx, addr, at))

		last, err := s.store.LastGrant(ctx, addr)
		s.NoError(err)
		s.True(last.Equal(at))
	})
}

func (s *InMemoryStoreSuite) TestPurgeGrant() {
	ctx := context.Background()
	addr := faucet.Address("rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH")

	s.Run("missing record returns not found", func() {
		err := s.store.PurgeGrant(ctx, addr)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("removes an existing record", func() {
		s.Require().NoError(s.store.RecordGrant(ctx, addr, time.Now()))
		s.NoError(s.store.PurgeGrant(ctx, addr))

		last, err := s.store.LastGrant(ctx, addr)
		s.NoError(err)
		s.Nil(last)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentAccess() {
	ctx := context.Background()
	const writers = 32

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := faucet.Address("rConcurrencyTestAddr00000" + string(rune('a'+n%26)))
			_ = s.store.RecordGrant(ctx, addr, time.Now())
			_, _ = s.store.LastGrant(ctx, addr)
		}(i)
	}
	wg.Wait()
}
