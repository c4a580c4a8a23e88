package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter in redis. Without a client it allows everything.
type RateLimiter struct {
	helper *CacheHelper
	limit  int
	window time.Duration
}

type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewRateLimiter(helper *CacheHelper, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{helper: helper, limit: limit, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	if r.helper == nil || r.helper.client == nil || r.limit <= 0 {
		return RateDecision{Allowed: true, Remaining: r.limit}, nil
	}

	windowKey := r.helper.GetCacheKey(fmt.Sprintf("%s:%d", key, time.Now().UnixNano()/int64(r.window)))

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.helper.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, r.window)
		ttl = pipe.PTTL(ctx, windowKey)
		return nil
	})
	if err != nil {
		return RateDecision{Allowed: true, Remaining: r.limit}, fmt.Errorf("rate limit error: %w", err)
	}

	count := int(incr.Val())
	if count > r.limit {
		retry := ttl.Val()
		if retry <= 0 {
			retry = r.window
		}
		return RateDecision{Allowed: false, RetryAfter: retry}, nil
	}
	return RateDecision{Allowed: true, Remaining: r.limit - count}, nil
}
