package idem

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store answers "has this message id been seen within ttl" and records it in
// the same step.
type Store interface {
	SeenOnce(ctx context.Context, key string, ttl time.Duration) (seen bool, err error)
}

type memIdem struct {
	mu  sync.Mutex
	m   map[string]time.Time // key -> expiry
	ttl time.Duration
	now func() time.Time
}

// NewMemIdem keeps ids in process memory; expired entries are swept on write
// once the map grows past sweepAt.
func NewMemIdem(defaultTTL time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &memIdem{m: make(map[string]time.Time), ttl: defaultTTL, now: time.Now}
}

const sweepAt = 4096

func (mi *memIdem) SeenOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil
	}
	if len(mi.m) >= sweepAt {
		for k, exp := range mi.m {
			if !exp.After(now) {
				delete(mi.m, k)
			}
		}
	}
	mi.m[key] = now.Add(ttl)
	return false, nil
}

type redisIdem struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisIdem shares seen ids across worker instances with SET NX EX.
func NewRedisIdem(rdb redis.UniversalClient, prefix string, defaultTTL time.Duration) Store {
	if prefix == "" {
		prefix = "translate"
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &redisIdem{rdb: rdb, prefix: prefix + ":idem:", ttl: defaultTTL}
}

func (ri *redisIdem) SeenOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ri.ttl
	}
	ok, err := ri.rdb.SetNX(ctx, ri.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
