package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "decoyd:session:"

// RedisStore is a Redis-backed Store for deployments that want sessions to
// survive a gateway restart. Read-modify-write atomicity is enforced with a
// per-key process-local mutex, which assumes a single gateway instance owns
// any given session ID.
type RedisStore struct {
	rdb  *redis.Client
	ttl  time.Duration
	keys KeyedMutex
}

// NewRedisStore connects to Redis and verifies the connection. A zero ttl
// defaults to 24 hours.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (r *RedisStore) load(ctx context.Context, sessionID string) (*State, error) {
	data, err := r.rdb.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) save(ctx context.Context, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(s.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) GetOrCreate(ctx context.Context, sessionID string) (*State, error) {
	r.keys.Lock(sessionID)
	defer r.keys.Unlock(sessionID)

	s, err := r.load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		s = NewState(sessionID)
		if err := r.save(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return s, err
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*State, error) {
	return r.load(ctx, sessionID)
}

func (r *RedisStore) Update(ctx context.Context, sessionID string, mutate func(*State)) (*State, error) {
	r.keys.Lock(sessionID)
	defer r.keys.Unlock(sessionID)

	prev, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next := prev.Clone()
	mutate(next)
	finalize(prev, next)
	if err := r.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *RedisStore) Close() {
	_ = r.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
