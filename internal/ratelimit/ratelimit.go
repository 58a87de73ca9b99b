// Package ratelimit implements a redis-backed token bucket used to slow
// down the auth endpoints (login, signup, password reset).
package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local requested = tonumber(ARGV[4])

	local info = redis.call("HMGET", key, "tokens", "last_refill")
	local tokens = tonumber(info[1])
	local last_refill = tonumber(info[2])

	if tokens == nil then
		tokens = capacity
		last_refill = now
	end

	local delta = math.max(0, now - last_refill)
	local filled_tokens = math.min(capacity, tokens + (delta / 1000 * rate))

	local allowed = 0
	if filled_tokens >= requested then
		filled_tokens = filled_tokens - requested
		allowed = 1
		redis.call("HMSET", key, "tokens", filled_tokens, "last_refill", now)
		redis.call("EXPIRE", key, math.ceil(capacity / rate) * 2)
	end

	return allowed
`)

// Limiter is a token bucket keyed by caller identity (usually remote IP).
type Limiter struct {
	client   redis.Scripter
	log      *logrus.Logger
	capacity int
	rate     float64 // tokens per second
}

// NewLimiter builds a limiter allowing bursts of capacity requests,
// refilling at rate tokens per second.
func NewLimiter(client redis.Scripter, log *logrus.Logger, capacity int, rate float64) *Limiter {
	return &Limiter{client: client, log: log, capacity: capacity, rate: rate}
}

// Allow consumes one token for key. On redis errors the request is allowed
// through: the limiter protects against brute force, it must not take the
// site down with it.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	now := time.Now().UnixMilli()
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{"ratelimit:" + key},
		l.capacity, l.rate, now, 1).Int()
	if err != nil {
		l.log.WithError(err).Warn("rate limiter unavailable, allowing request")
		return true
	}
	return res == 1
}
