package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by every instance.
// Redis failures admit the request.
type RedisLimiter struct {
	client  redis.UniversalClient
	log     *slog.Logger
	prefix  string
	timeout time.Duration
}

// DialRedis connects to addr and verifies it with PING.
func DialRedis(ctx context.Context, addr, password string, db int, log *slog.Logger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLimiter(client, log), nil
}

// NewRedisLimiter wraps an existing client.
func NewRedisLimiter(client redis.UniversalClient, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLimiter{
		client:  client,
		log:     log,
		prefix:  "kite:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

// allowScript counts a hit and arms the window TTL in one atomic step. A
// counter found without a TTL is re-armed so it cannot lock a key forever.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if n == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Allow counts a hit on key within a fixed window of span.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, span time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if span <= 0 {
		span = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := allowScript.Run(ctx, l.client, []string{l.prefix + key}, span.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.log.Error("ratelimit.redis.fail", "op", "allow", "err", err)
		return Decision{Allowed: true}
	}
	n := int(res[0])
	if n <= limit {
		return Decision{Allowed: true, Count: n}
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = span
	}
	return Decision{Allowed: false, Count: n, RetryAfter: ttl}
}

// Close closes the client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
