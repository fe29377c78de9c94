// Package memory implements kv.Store in process. It backs single-instance
// deployments and tests; multiple processes need the redis driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
)

type entry struct {
	value     string
	members   map[string]struct{}
	expiresAt time.Time // zero means no expiry
}

type Store struct {
	mu    sync.Mutex
	items map[string]*entry

	now func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ kv.Store = (*Store)(nil)

// Keys nobody reads again (deny-listed jtis, unused reset tickets) are only
// reclaimed by the sweep.
const defaultSweepInterval = time.Minute

// NewStore starts a janitor that drops expired keys until Close.
func NewStore() *Store {
	return newStore(defaultSweepInterval, time.Now)
}

// NewStoreWithClock is NewStore with expiry measured on now.
func NewStoreWithClock(now func() time.Time) *Store {
	return newStore(defaultSweepInterval, now)
}

func newStore(interval time.Duration, now func() time.Time) *Store {
	s := &Store{
		items: make(map[string]*entry),
		now:   now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.janitor(interval)
	return s
}

func (s *Store) janitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep removes every expired entry and reports how many went.
func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// lookup returns a live entry and evicts expired ones. Caller holds mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return nil, false
	}
	return e, true
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.members != nil {
		return "", kv.ErrNil
	}
	return e.value, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	return ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = &entry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *Store) Take(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.members != nil {
		return "", kv.ErrNil
	}
	delete(s.items, key)
	return e.value, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, k := range keys {
		if _, ok := s.lookup(k); ok {
			delete(s.items, k)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return []string{}, nil
	}

	out := make([]string, 0, len(e.members))
	for m := range e.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Exec(ctx context.Context, b *kv.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range b.Requires {
		if _, ok := s.lookup(k); !ok {
			return kv.ErrConflict
		}
	}

	for _, op := range b.Ops {
		switch op.Kind {
		case kv.OpSet:
			s.items[op.Key] = &entry{value: op.Value, expiresAt: s.expiry(op.TTL)}
		case kv.OpDelete:
			delete(s.items, op.Key)
		case kv.OpAddMember:
			e, ok := s.lookup(op.Key)
			if !ok || e.members == nil {
				e = &entry{members: make(map[string]struct{})}
				s.items[op.Key] = e
			}
			e.members[op.Value] = struct{}{}
			if op.TTL > 0 {
				e.expiresAt = s.expiry(op.TTL)
			}
		case kv.OpExpire:
			e, ok := s.lookup(op.Key)
			if !ok {
				continue
			}
			if op.TTL <= 0 {
				delete(s.items, op.Key)
				continue
			}
			e.expiresAt = s.expiry(op.TTL)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close stops the janitor. The data stays readable.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}
