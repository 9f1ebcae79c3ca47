// Package ratelimit throttles board writes per member using fixed Redis
// counters (INCR, then EXPIRE on the first hit of a window). Counters live in
// Redis so every board replica shares the same budget.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/board/internal/metrics"
)

// Rule is one throttling policy.
type Rule struct {
	Name   string        // metric label
	Prefix string        // Redis key prefix
	Limit  int           // max hits per window
	Window time.Duration // counter lifetime
}

var (
	// RuleEntry allows 10 posted entries per minute per member and session.
	RuleEntry = Rule{Name: "entry", Prefix: "board:rl:entry:", Limit: 10, Window: time.Minute}

	// RuleHeartbeat allows 30 heartbeats per minute per member and session,
	// comfortably above the 30s client cadence.
	RuleHeartbeat = Rule{Name: "heartbeat", Prefix: "board:rl:hb:", Limit: 30, Window: time.Minute}
)

// Key builds the per-member identifier used by the board rules.
func Key(sessionID, memberID string) string {
	return sessionID + ":" + memberID
}

// Limiter checks rules against Redis.
type Limiter struct {
	client redis.Cmdable
}

// NewLimiter wraps a Redis client.
func NewLimiter(client redis.Cmdable) *Limiter {
	return &Limiter{client: client}
}

// Allow counts one hit for identifier under rule and reports whether it is
// within the limit. Redis failures fail open: the hit is allowed and the
// error returned for logging only.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Prefix + identifier

	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("ratelimit: incr failed, allowing", "key", key, "err", err)
		return true, err
	}

	if n == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			// A counter without a TTL would throttle the member forever.
			l.client.Del(ctx, key)
			slog.Warn("ratelimit: expire failed, allowing", "key", key, "err", err)
			return true, err
		}
	}

	if int(n) > rule.Limit {
		metrics.RateLimitedTotal.WithLabelValues(rule.Name).Inc()
		return false, nil
	}
	return true, nil
}

// Remaining reports how many hits identifier has left in the current window.
// A missing counter or a Redis error yields the full limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Prefix + identifier

	n, err := l.client.Get(ctx, key).Int()
	switch {
	case err == redis.Nil:
		return rule.Limit, nil
	case err != nil:
		return rule.Limit, err
	}
	return max(rule.Limit-n, 0), nil
}
