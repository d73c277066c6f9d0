// Package ratelimit throttles anonymous callers that present bearer tokens,
// so invite and activation links cannot be guessed by volume.
package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tandem/internal/config"
	"go.uber.org/zap"
)

const keyTokenProbe = "ratelimit:token_probe:"

// ProbeLimiter applies one bucket per client address. A nil limiter allows
// everything.
type ProbeLimiter struct {
	bucket Bucket
	rate   float64
	burst  int
}

// NewProbeLimiter returns nil when rate limiting is disabled or redis is not
// configured.
func NewProbeLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *ProbeLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Info("redis not configured, token routes are not rate limited")
		return nil
	}
	if limitCfg.ProbeRate <= 0 || limitCfg.ProbeBurst <= 0 {
		log.Warn("token rate limit disabled, rate and burst must be positive",
			zap.Float64("rate", limitCfg.ProbeRate),
			zap.Int("burst", limitCfg.ProbeBurst),
		)
		return nil
	}
	return New(NewTokenBucket(client), limitCfg.ProbeRate, limitCfg.ProbeBurst)
}

func New(bucket Bucket, rate float64, burst int) *ProbeLimiter {
	return &ProbeLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *ProbeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow spends one token for client.
func (l *ProbeLimiter) Allow(ctx context.Context, client string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	return l.bucket.Allow(ctx, keyTokenProbe+client, l.rate, l.burst)
}
