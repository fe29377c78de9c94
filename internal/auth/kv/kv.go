// Package kv defines the fast revocation store: a key-value store with
// per-key expiry and atomic multi-key batches. It holds the refresh-token
// index, family membership sets, the access-token deny-list, password reset
// tickets and cached permission sets.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNil is returned when a key does not exist.
	ErrNil = errors.New("kv: nil")

	// ErrConflict is returned by Exec when a Require precondition fails.
	// None of the batch's writes were applied.
	ErrConflict = errors.New("kv: precondition failed")
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Set writes a string value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Take atomically reads and deletes a key.
	Take(ctx context.Context, key string) (string, error)

	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Members returns the members of a set key, empty when absent.
	Members(ctx context.Context, key string) ([]string, error)

	// Exec applies a batch all-or-nothing.
	Exec(ctx context.Context, b *Batch) error

	Ping(ctx context.Context) error
	Close() error
}

type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
	OpAddMember
	OpExpire
)

// Op is a single write inside a Batch.
type Op struct {
	Kind  OpKind
	Key   string
	Value string
	TTL   time.Duration
}

// Batch collects preconditions and writes that a driver applies atomically.
type Batch struct {
	Requires []string
	Ops      []Op
}

func NewBatch() *Batch { return &Batch{} }

// Require makes the batch fail with ErrConflict unless key exists when the
// batch executes.
func (b *Batch) Require(key string) *Batch {
	b.Requires = append(b.Requires, key)
	return b
}

func (b *Batch) Set(key, value string, ttl time.Duration) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpSet, Key: key, Value: value, TTL: ttl})
	return b
}

func (b *Batch) Delete(keys ...string) *Batch {
	for _, k := range keys {
		b.Ops = append(b.Ops, Op{Kind: OpDelete, Key: k})
	}
	return b
}

// AddMember adds member to the set at key. A positive ttl also resets the
// set's expiry; zero leaves it untouched.
func (b *Batch) AddMember(key, member string, ttl time.Duration) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpAddMember, Key: key, Value: member, TTL: ttl})
	return b
}

func (b *Batch) Expire(key string, ttl time.Duration) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpExpire, Key: key, TTL: ttl})
	return b
}

func (b *Batch) Empty() bool { return len(b.Ops) == 0 }
