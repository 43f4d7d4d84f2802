// Package ratelimit throttles login attempts per username with fixed Redis
// counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("too many login attempts")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter returns a limiter allowing maxAttempts failed logins per
// username within window. A nil client disables limiting.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{redis: client, maxAttempts: maxAttempts, window: window}
}

// Check fails once the username has used up its attempts.
func (l *LoginLimiter) Check(ctx context.Context, username string) error {
	if l == nil || l.redis == nil || l.maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Get(ctx, loginKey(username)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Fail records a failed attempt; the first failure starts the window.
func (l *LoginLimiter) Fail(ctx context.Context, username string) error {
	if l == nil || l.redis == nil || l.maxAttempts <= 0 {
		return nil
	}
	key := loginKey(username)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func loginKey(username string) string {
	return "login:attempts:" + strings.ToLower(strings.TrimSpace(username))
}
