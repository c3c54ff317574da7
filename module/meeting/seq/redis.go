package seq

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore keeps counters as plain integer keys; INCR is atomic across
// every client of the same Redis deployment.
func NewRedisStore(rdb redis.UniversalClient, prefix string) Store {
	if prefix == "" {
		prefix = "translate:seq"
	}
	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) key(meetingCode string) string {
	return s.prefix + ":" + meetingCode
}

func (s *redisStore) Incr(ctx context.Context, meetingCode string) (int64, error) {
	return s.rdb.Incr(ctx, s.key(meetingCode)).Result()
}

func (s *redisStore) Load(ctx context.Context, meetingCode string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.key(meetingCode)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *redisStore) Ensure(ctx context.Context, meetingCode string) error {
	return s.rdb.SetNX(ctx, s.key(meetingCode), 0, 0).Err()
}
