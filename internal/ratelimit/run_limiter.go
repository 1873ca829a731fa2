package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/zap"
)

// RunLimiter bounds how often a single user may start a merge run.
type RunLimiter interface {
	AllowRun(ctx context.Context, userID snowflake.ID) (bool, error)
}

type redisRunLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
	holder *config.MergeConfigHolder
}

// NewRunLimiter degrades to allow-all when redis is not configured, so
// single-instance installs work without one.
func NewRunLimiter(log *zap.Logger, bucket *TokenBucket, holder *config.MergeConfigHolder) RunLimiter {
	if bucket == nil {
		log.Warn("redis not configured, merge run rate limiting disabled")
		return allowAll{}
	}
	return &redisRunLimiter{
		log:    log.Named("ratelimit.run"),
		bucket: bucket,
		holder: holder,
	}
}

func (l *redisRunLimiter) AllowRun(ctx context.Context, userID snowflake.ID) (bool, error) {
	cfg := l.holder.Current()
	rate := float64(cfg.SendRatePerMinute) / 60.0
	key := fmt.Sprintf("lettermill:runs:%s", userID)

	res, err := l.bucket.Allow(ctx, key, rate, cfg.SendBurst)
	if err != nil {
		// A broken limiter must not block outgoing campaigns.
		l.log.Warn("rate limiter unavailable, allowing run", zap.Error(err))
		return true, nil
	}
	if !res.Allowed {
		l.log.Info("merge run throttled",
			zap.String("user_id", userID.String()),
			zap.Duration("retry_after", res.RetryAfter),
		)
	}
	return res.Allowed, nil
}

type allowAll struct{}

func (allowAll) AllowRun(context.Context, snowflake.ID) (bool, error) { return true, nil }
