// Package redis implements kv.Store on Redis. Batches run as a single Lua
// script so preconditions and writes are applied atomically.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
)

// execBatchScript checks every required key, then applies the writes.
// KEYS = requires..., op keys...
// ARGV = #requires, then (kind, value, ttl_ms) per op.
var execBatchScript = redis.NewScript(`
local nreq = tonumber(ARGV[1])
for i = 1, nreq do
    if redis.call('EXISTS', KEYS[i]) == 0 then
        return 0
    end
end

local a = 2
for i = nreq + 1, #KEYS do
    local kind = ARGV[a]
    local val = ARGV[a + 1]
    local ttl = tonumber(ARGV[a + 2])
    a = a + 3

    if kind == 'set' then
        if ttl > 0 then
            redis.call('SET', KEYS[i], val, 'PX', ttl)
        else
            redis.call('SET', KEYS[i], val)
        end
    elseif kind == 'del' then
        redis.call('DEL', KEYS[i])
    elseif kind == 'sadd' then
        redis.call('SADD', KEYS[i], val)
        if ttl > 0 then
            redis.call('PEXPIRE', KEYS[i], ttl)
        end
    elseif kind == 'expire' then
        redis.call('PEXPIRE', KEYS[i], ttl)
    end
end

return 1
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Store runs batches as one script and deletes several keys per call, so it
// needs a single node: the refresh keys carry no hash tags.
type Store struct {
	client *redis.Client
}

var _ kv.Store = (*Store)(nil)

func NewStore(opts Options) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})}
}

// NewStoreFromClient wraps an existing single-node client.
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	return v, mapNil(err)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Take(ctx context.Context, key string) (string, error) {
	v, err := s.client.GetDel(ctx, key).Result()
	return v, mapNil(err)
}

func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) Exec(ctx context.Context, b *kv.Batch) error {
	if b == nil || (b.Empty() && len(b.Requires) == 0) {
		return nil
	}

	keys := make([]string, 0, len(b.Requires)+len(b.Ops))
	keys = append(keys, b.Requires...)

	args := make([]any, 0, 1+3*len(b.Ops))
	args = append(args, len(b.Requires))

	for _, op := range b.Ops {
		keys = append(keys, op.Key)

		kind, err := opName(op.Kind)
		if err != nil {
			return err
		}
		args = append(args, kind, op.Value, op.TTL.Milliseconds())
	}

	applied, err := execBatchScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return err
	}
	if applied == 0 {
		return kv.ErrConflict
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func opName(k kv.OpKind) (string, error) {
	switch k {
	case kv.OpSet:
		return "set", nil
	case kv.OpDelete:
		return "del", nil
	case kv.OpAddMember:
		return "sadd", nil
	case kv.OpExpire:
		return "expire", nil
	default:
		return "", fmt.Errorf("redis: unknown batch op %d", k)
	}
}

func mapNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return kv.ErrNil
	}
	return err
}
