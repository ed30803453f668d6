// Package rate caps how often something may happen per identifier within
// a sliding window, shared across workers through Redis.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Limit struct {
	Window time.Duration
	Max    int
}

// slidingWindow trims the window, then records the attempt only if it
// fits. Denied attempts leave the window untouched.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window * 2)
return 1
`)

type Limiter struct {
	redis *redis.Client
	name  string
	limit Limit
	now   func() time.Time
}

func NewLimiter(client *redis.Client, name string, limit Limit) *Limiter {
	return &Limiter{
		redis: client,
		name:  name,
		limit: limit,
		now:   time.Now,
	}
}

func (l *Limiter) key(identifier string) string {
	return fmt.Sprintf("rate:%s:%s", l.name, identifier)
}

// Allow reports whether one more event for identifier fits in the current
// window, and records it if so.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l.limit.Max <= 0 {
		return false, nil
	}
	res, err := slidingWindow.Run(ctx, l.redis, []string{l.key(identifier)},
		l.now().UnixMilli(),
		l.limit.Window.Milliseconds(),
		l.limit.Max,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate %s: %w", l.name, err)
	}
	return res == 1, nil
}
