package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIPLimit       = 10
	defaultIPWindow      = 15 * time.Minute
	defaultEmailCooldown = 2 * time.Minute
)

// Limiter keeps fixed-window request counters and cooldown markers in Redis
type Limiter struct {
	client        *redis.Client
	ipLimit       int64
	ipWindow      time.Duration
	emailCooldown time.Duration
}

// Option tweaks a Limiter
type Option func(*Limiter)

// WithIPLimit sets how many requests an IP may make per window
func WithIPLimit(limit int64, window time.Duration) Option {
	return func(l *Limiter) {
		l.ipLimit = limit
		l.ipWindow = window
	}
}

// WithEmailCooldown sets the pause between mails to one address
func WithEmailCooldown(d time.Duration) Option {
	return func(l *Limiter) {
		l.emailCooldown = d
	}
}

func NewLimiter(client *redis.Client, opts ...Option) *Limiter {
	l := &Limiter{
		client:        client,
		ipLimit:       defaultIPLimit,
		ipWindow:      defaultIPWindow,
		emailCooldown: defaultEmailCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailCooldownKey(email string) string {
	return fmt.Sprintf("ratelimit:email:%s", strings.ToLower(strings.TrimSpace(email)))
}

// CheckIPRateLimitWithPurpose reports whether the IP used up its budget for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request; the window starts at the first one
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return nil
}

// CheckEmailCooldown reports whether a mail went to this address recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Exists(ctx, emailCooldownKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for an address
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, emailCooldownKey(email), "1", l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
