package api

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/arkanlabs/riskpipe/pkg/logger"
	"github.com/arkanlabs/riskpipe/pkg/redis"
)

// PredictLimiter throttles the prediction endpoint. With Redis enabled the
// limit is shared across instances through a sliding window; otherwise a
// local token bucket with the same average rate applies.
type PredictLimiter struct {
	client *redis.Client
	remote *redis.RateLimiter
	local  *rate.Limiter
	cfg    redis.RateLimitConfig
	logger *logger.Logger
}

// NewPredictLimiter creates a limiter allowing limit requests per window.
func NewPredictLimiter(client *redis.Client, limit int, window time.Duration, log *logger.Logger) *PredictLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &PredictLimiter{
		client: client,
		remote: redis.NewRateLimiter(client, "riskpipe"),
		local:  rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		cfg: redis.RateLimitConfig{
			Key:    "predict",
			Limit:  limit,
			Window: window,
		},
		logger: log,
	}
}

// Allow reports whether one more prediction request may proceed.
func (l *PredictLimiter) Allow(ctx context.Context) bool {
	allowed, _, err := l.remote.Allow(ctx, l.cfg)
	if err != nil {
		// Redis trouble must not take the serving path down.
		l.logger.WithError(err).Warn("Rate limiter unavailable, falling back to local limit")
		return l.local.Allow()
	}
	if !allowed {
		return false
	}

	// With Redis disabled Allow always reports true; the local bucket is
	// then the effective limit.
	if !l.client.Enabled() {
		return l.local.Allow()
	}
	return true
}
