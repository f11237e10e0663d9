package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daap14/parley/internal/clock"
)

// incrementScript increments the counter and starts its window on the first
// hit. Running it as one script keeps check-and-increment atomic across
// replicas.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore keeps counters in Redis with the window as key TTL.
type RedisStore struct {
	client redis.Scripter
	clock  clock.Clock
}

// NewRedisStore creates a RedisStore using client.
func NewRedisStore(client redis.Scripter, c clock.Clock) *RedisStore {
	return &RedisStore{client: client, clock: c}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("running increment script: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected increment script result: %v", res)
	}

	resetAt := s.clock.Now().Add(time.Duration(res[1]) * time.Millisecond)
	return res[0], resetAt, nil
}
