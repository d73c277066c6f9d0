package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/tandem/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingBucket struct {
	keys  []string
	limit int
}

func (b *countingBucket) Allow(_ context.Context, key string, _ float64, burst int) (*Result, error) {
	b.keys = append(b.keys, key)
	used := 0
	for _, k := range b.keys {
		if k == key {
			used++
		}
	}
	return &Result{Allowed: used <= b.limit, Limit: burst, Remaining: max(b.limit-used, 0)}, nil
}

func TestProbeLimiterKeysByClient(t *testing.T) {
	bucket := &countingBucket{limit: 2}
	limiter := New(bucket, 1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.Allow(ctx, " ")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "ratelimit:token_probe:unknown", bucket.keys[len(bucket.keys)-1])
}

func TestNilProbeLimiterAllows(t *testing.T) {
	var limiter *ProbeLimiter
	res, err := limiter.Allow(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, limiter.Enabled())
}

func TestNewProbeLimiterNeedsRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ProbeRate: 1, ProbeBurst: 5}}
	assert.Nil(t, NewProbeLimiter(cfg, nil, zaptest.NewLogger(t)))
}

func TestTokenBucketWithoutClient(t *testing.T) {
	_, err := NewTokenBucket(nil).Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, retryAfter(true, 0, 1))
	assert.Equal(t, 2*time.Second, retryAfter(false, 0, 0.5))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
}
