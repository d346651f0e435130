// Package ratelimit implements a fixed-window request limiter shared across
// server instances through Redis.
package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// fixedWindow increments the counter for the current window and returns
// {count, pttl}. The window starts on the first request.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // until the window resets; set when denied
}

// Limiter allows at most limit requests per key per window.
type Limiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow sets the window length. The default is one minute.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		l.window = d
	}
}

// WithPrefix sets the Redis key prefix.
func WithPrefix(p string) Option {
	return func(l *Limiter) {
		l.prefix = p
	}
}

// New creates a Limiter. A limit of zero or less allows everything.
func New(client redis.Scripter, limit int, opts ...Option) *Limiter {
	l := &Limiter{
		client: client,
		limit:  limit,
		window: time.Minute,
		prefix: "lexi:rl:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured requests per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow counts one request for key. An error means the decision could not
// be made; callers decide whether to fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := fixedWindow.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	d := Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = max(ttl, time.Second)
	}
	return d, nil
}

// ClientKey derives an opaque, fixed-length key from a client identifier
// such as an IP address, so raw addresses are never stored.
func ClientKey(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:16])
}
