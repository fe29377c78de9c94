package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStoreWithClock(clock.Now), clock
}

func (s *Store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func TestSetGetExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "forever", "x", 0))

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	clock.Advance(time.Minute)

	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, kv.ErrNil)

	ok, err := s.Exists(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Set(ctx, "ticket", "42", time.Hour))

	v, err := s.Take(ctx, "ticket")
	require.NoError(t, err)
	require.Equal(t, "42", v)

	_, err = s.Take(ctx, "ticket")
	require.ErrorIs(t, err, kv.ErrNil)
}

func TestDeleteCountsExistingKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "b", "1", 0))

	n, err := s.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	require.NoError(t, s.Set(ctx, "jti", "fam", 0))

	var winners atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Delete(ctx, "jti")
			require.NoError(t, err)
			winners.Add(n)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), winners.Load())
}

func TestExecBatch(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	t.Run("applies all writes", func(t *testing.T) {
		b := kv.NewBatch().
			Set("refresh:jti:1", "fam", time.Minute).
			AddMember("refresh:family:fam", "1", time.Hour).
			AddMember("refresh:family:fam", "2", 0)
		require.NoError(t, s.Exec(ctx, b))

		members, err := s.Members(ctx, "refresh:family:fam")
		require.NoError(t, err)
		require.Equal(t, []string{"1", "2"}, members)
	})

	t.Run("failed precondition applies nothing", func(t *testing.T) {
		b := kv.NewBatch().
			Require("refresh:family:gone").
			Set("refresh:jti:9", "gone", time.Minute)
		require.ErrorIs(t, s.Exec(ctx, b), kv.ErrConflict)

		ok, err := s.Exists(ctx, "refresh:jti:9")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("satisfied precondition", func(t *testing.T) {
		b := kv.NewBatch().
			Require("refresh:family:fam").
			Set("refresh:jti:3", "fam", time.Minute).
			Delete("refresh:jti:1")
		require.NoError(t, s.Exec(ctx, b))

		ok, err := s.Exists(ctx, "refresh:jti:1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("set keeps ttl of first AddMember", func(t *testing.T) {
		clock.Advance(time.Hour)

		members, err := s.Members(ctx, "refresh:family:fam")
		require.NoError(t, err)
		require.Empty(t, members)
	})

	t.Run("expire", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", "v", 0))
		require.NoError(t, s.Exec(ctx, kv.NewBatch().Expire("k", time.Second)))
		clock.Advance(time.Second)

		ok, err := s.Exists(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestCancelledContext(t *testing.T) {
	s, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Exists(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSweepDropsUnreadExpiredKeys(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	t.Cleanup(func() { _ = s.Close() })

	for i := 0; i < 10000; i++ {
		require.NoError(t, s.Set(ctx, kv.DenylistKey(fmt.Sprintf("jti-%d", i)), "1", time.Minute))
	}
	require.NoError(t, s.Exec(ctx, kv.NewBatch().AddMember("family", "a", time.Minute)))
	require.NoError(t, s.Set(ctx, "forever", "x", 0))
	require.NoError(t, s.Set(ctx, "later", "x", 2*time.Hour))

	require.Zero(t, s.sweep())
	require.Equal(t, 10003, s.len())

	clock.Advance(time.Hour)
	require.Equal(t, 10001, s.sweep())
	require.Equal(t, 2, s.len())

	v, err := s.Get(ctx, "later")
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestJanitorSweepsUntilClosed(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newStore(5*time.Millisecond, clock.Now)

	require.NoError(t, s.Set(ctx, "a", "1", time.Second))
	require.NoError(t, s.Set(ctx, "b", "1", time.Second))
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool { return s.len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// Closed stores still serve reads and writes, they just stop sweeping.
	require.NoError(t, s.Set(ctx, "c", "1", time.Second))
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, s.len())
}
